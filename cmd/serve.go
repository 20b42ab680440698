package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"vidsource/internal/server"
)

const shutdownTimeout = 15 * time.Second

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /extract over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func init() {
	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address (default from config)")
}

func serveRun(cmd *cobra.Command, args []string) error {
	if flagListen != "" {
		cfg.Listen = flagListen
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.New(a.resolver(), logger.Logger).HTTPServer(cfg.Listen)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
