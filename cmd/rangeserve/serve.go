package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ananthb/rangeserve"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	serveDir         string
	serveAddr        string
	serveFile        string
	serveRoute       string
	serveContentType string
	serveName        string
	serveRate        string
	serveTTL         time.Duration
	serveMetrics     bool
	serveLogProgress bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a directory, and optionally one file on its own route.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		var bps uint64
		if serveRate != "" {
			var err error
			if bps, err = humanize.ParseBytes(serveRate); err != nil {
				return err
			}
		}
		ambient := &rangeserve.Ambient{Server: serveName, TTL: serveTTL}

		mux := http.NewServeMux()
		mux.Handle("/", &rangeserve.Handler{
			Opener:         rangeserve.Dir(serveDir),
			Name:           "static",
			Ambient:        ambient,
			BytesPerSecond: int(bps),
			Logger:         logger,
		})

		if serveFile != "" {
			base := filepath.Base(serveFile)
			h := &rangeserve.Handler{
				Opener:         rangeserve.Dir(filepath.Dir(serveFile)),
				Name:           "file",
				Resource:       func(*http.Request) string { return base },
				ContentType:    serveContentType,
				Ambient:        ambient,
				BytesPerSecond: int(bps),
				Logger:         logger,
			}
			if serveLogProgress {
				h.Progress = func(r *http.Request, w rangeserve.Window) rangeserve.ProgressListener {
					return rangeserve.ProgressFunc(func(delivered uint64) {
						logger.Debug("progress",
							slog.String("remote", r.RemoteAddr),
							slog.String("range", w.ContentRange()),
							slog.String("sent", humanize.IBytes(delivered)))
					})
				}
			}
			mux.Handle(serveRoute, h)
		}

		if serveMetrics {
			mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
				rangeserve.StatsForNerds.WritePrometheus(w)
				metrics.WriteProcessMetrics(w)
			})
		}

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("listening", slog.String("addr", serveAddr), slog.String("dir", serveDir))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveDir, "dir", "d", ".", "Directory to serve under /.")
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "127.0.0.1:9860", "Address to listen on.")
	serveCmd.Flags().StringVarP(&serveFile, "file", "f", "", "Single file to serve on --route.")
	_ = serveCmd.MarkFlagFilename("file")
	serveCmd.Flags().StringVar(&serveRoute, "route", "/getvideo", "Route for --file.")
	serveCmd.Flags().StringVar(&serveContentType, "content-type", "", "Content type for --file. Guessed from the extension if empty.")
	serveCmd.Flags().StringVar(&serveName, "server-name", "rangeserve", "Value of the Server header.")
	serveCmd.Flags().DurationVar(&serveTTL, "expires", 0, "Offset of the Expires header from now.")
	serveCmd.Flags().StringVarP(&serveRate, "rate", "r", "", "Per response bandwidth cap (e.g. 50MiB). Unlimited if empty.")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "Expose Prometheus metrics on /metrics.")
	serveCmd.Flags().BoolVar(&serveLogProgress, "log-progress", false, "Log progress of every chunk sent on --route (needs -v).")
}
