package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lodestone-data/lodestone/internal/tenant"
)

var (
	askTenant  string
	askSession string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a one-shot question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askTenant, "tenant", tenant.DefaultID, "tenant to ask as")
	askCmd.Flags().StringVar(&askSession, "session", "", "session id to continue (default: new session)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger := newLogger()
	a, err := setup(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if _, _, err := a.tenants.EnsureDefault(ctx); err != nil {
		return err
	}

	sessionID := askSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	question := strings.Join(args, " ")
	result, err := a.assistant.Answer(ctx, askTenant, question, sessionID)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if verbose {
		fmt.Printf("\n[query_type=%s session=%s sources=%s]\n",
			result.QueryType, sessionID, strings.Join(result.SourcesUsed, ", "))
	}
	return nil
}
