package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ananthb/rangeserve"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	getOutput    string
	getChunkSize string
	getWorkers   uint
	getCache     int
	getQuiet     bool
)

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Download a URL by fetching byte ranges in parallel.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		csize, err := humanize.ParseBytes(getChunkSize)
		if err != nil {
			return err
		}
		client := &rangeserve.Client{
			ChunkSize:  csize,
			Workers:    getWorkers,
			CacheSlots: getCache,
		}

		dest, err := os.Create(getOutput)
		if err != nil {
			return err
		}
		defer dest.Close()

		var listener rangeserve.ProgressListener
		var bar *progressbar.ProgressBar
		if !getQuiet {
			bar = progressbar.DefaultBytes(-1, "Downloading")
			var last uint64
			listener = rangeserve.ProgressFunc(func(delivered uint64) {
				_ = bar.Add64(int64(delivered - last))
				last = delivered
			})
		}

		start := time.Now()
		size, err := client.Download(cmd.Context(), args[0], dest, listener)
		if err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Finish()
			elapsed := time.Since(start)
			rate := float64(size) / elapsed.Seconds()
			fmt.Printf("\nDownloaded %s in %s at %s/s.\n",
				humanize.IBytes(size), elapsed.Round(time.Millisecond), humanize.IBytes(uint64(rate)))
		}
		return dest.Close()
	},
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "Destination path. Will be overwritten if it exists.")
	_ = getCmd.MarkFlagRequired("output")
	_ = getCmd.MarkFlagFilename("output")
	getCmd.Flags().StringVarP(&getChunkSize, "chunk-size", "c", "1MiB", "Chunk size (e.g. 1MiB, 1GiB).")
	getCmd.Flags().UintVarP(&getWorkers, "workers", "w", 8, "Number of chunks to download in parallel.")
	getCmd.Flags().IntVar(&getCache, "cache", 0, "Chunks to keep in memory for reuse.")
	getCmd.Flags().BoolVarP(&getQuiet, "quiet", "q", false, "Quiet mode.")
}
