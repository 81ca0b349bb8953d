// Command rangeserve serves files with HTTP range support and downloads
// them again in parallel chunks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "rangeserve",
	Short: "rangeserve serves and fetches files with HTTP byte ranges.",
	Long: `A file server that answers single byte-range requests with bounded memory,
and a downloader that fetches byte chunks in parallel.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request.")
	rootCmd.AddCommand(serveCmd, getCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
