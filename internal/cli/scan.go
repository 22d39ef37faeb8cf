package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var scanWindow time.Duration

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan batch over fresh articles",
	Long: `Scan pulls a window of recent articles on the configured topics,
verifies a candidate claim per article with a reduced agent set, and
updates the crisis tracker. Prints the batch summary and any active
clusters as JSON.

Example:
  crux scan --window 24h`,
	RunE: runScanBatch,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().DurationVar(&scanWindow, "window", 0, "article freshness window (default from config)")
}

func runScanBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, slog.Default())
	if err != nil {
		return err
	}

	summary, err := a.pipeline.Run(context.Background(), scanWindow)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	out := struct {
		Summary  interface{} `json:"summary"`
		Clusters interface{} `json:"clusters"`
	}{summary, a.tracker.ListActive()}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
