package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

var verifySourceURL string

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim text>",
	Short: "Verify a single claim and print the verdict",
	Long: `Verify fetches evidence for the claim, runs the agent pool over it,
and prints the aggregated verdict as JSON.

Example:
  crux verify "Vaccine X causes condition Y"
  crux verify "..." --source https://example.com/article`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifySourceURL, "source", "", "URL where the claim was seen")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, slog.Default())
	if err != nil {
		return err
	}

	claimText := strings.Join(args, " ")
	verdict, err := a.orchestrator.Verify(context.Background(), claimText, verifySourceURL)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
