package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodestone-data/lodestone/internal/tenant"
)

var indexTenant string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild shared docs and the tenant's source-config chunks",
	RunE:  runIndexRebuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chunk counts per namespace",
	RunE:  runIndexStatus,
}

func init() {
	indexCmd.PersistentFlags().StringVar(&indexTenant, "tenant", tenant.DefaultID, "tenant to operate on")
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx, newLogger())
	if err != nil {
		return err
	}
	defer a.close()

	if _, _, err := a.tenants.EnsureDefault(ctx); err != nil {
		return err
	}

	stats, err := a.assistant.RebuildIndex(ctx, indexTenant)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d shared doc chunks and %d source-config chunks for tenant %q\n",
		stats.SharedDocs, stats.SourceConfigs, indexTenant)
	return nil
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setup(ctx, newLogger())
	if err != nil {
		return err
	}
	defer a.close()

	status, err := a.assistant.IndexStatus(ctx, indexTenant)
	if err != nil {
		return err
	}
	fmt.Printf("Shared chunks: %d\nTenant chunks: %d\n", status.SharedChunks, status.TenantChunks)
	return nil
}
