package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/metaopt/internal/server"
	"github.com/cwbudde/metaopt/internal/store"
)

var (
	serveAddr  string
	serveStore string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that accepts run configurations, executes them in
the background and streams progress over server-sent events. Finished runs
are saved to --store when it is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var runStore store.Store
		if serveStore != "" {
			s, err := store.Open(serveStore)
			if err != nil {
				return err
			}
			runStore = s
			if c, ok := s.(io.Closer); ok {
				defer c.Close()
			}
		}

		srv := server.NewServer(serveAddr, runStore)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case s := <-sig:
			slog.Info("Received signal", "signal", s.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Save finished runs (directory, or .db/.sqlite file)")
	rootCmd.AddCommand(serveCmd)
}
