package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage API tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create [id] [name]",
	Short: "Create a tenant and print its API key",
	Args:  cobra.ExactArgs(2),
	RunE:  runTenantCreate,
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants",
	RunE:  runTenantList,
}

func init() {
	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantListCmd)
	rootCmd.AddCommand(tenantCmd)
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx, newLogger())
	if err != nil {
		return err
	}
	defer a.close()

	key, err := a.tenants.Create(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Created tenant %q\n", args[0])
	fmt.Printf("API key (shown once, store it now): %s\n", key)
	return nil
}

func runTenantList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx, newLogger())
	if err != nil {
		return err
	}
	defer a.close()

	tenants, err := a.tenants.List(ctx)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants.")
		return nil
	}
	for _, t := range tenants {
		fmt.Printf("%s\t%s\tenabled=%t\tcreated=%s\n",
			t.ID, t.Name, t.Enabled, t.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
