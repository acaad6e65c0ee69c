package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a page and print its markup",
	Long: `Download a page and print its markup, or write it to --output.
Only http:// and https:// URLs are accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.fetcher.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	slog.Info("Fetched page",
		"url", resp.URL,
		"final_url", resp.FinalURL,
		"status", resp.StatusCode,
		"content_type", resp.ContentType,
		"bytes", len(resp.Body),
		"ttfb", resp.Metrics.TTFB,
		"download_time", resp.Metrics.DownloadTime)

	if a.cfg.OutputPath != "" {
		if err := os.WriteFile(a.cfg.OutputPath, resp.Body, 0600); err != nil {
			return fmt.Errorf("failed to write page: %w", err)
		}
		return nil
	}

	_, err = cmd.OutOrStdout().Write(resp.Body)
	return err
}
