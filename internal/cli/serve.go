package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/api"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/dispatch"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "Serves the task pool over HTTP. Side effects run on a background queue configured under dispatch: in the config file.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.For("serve")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	q := dispatch.NewQueue(dispatch.QueueConfig{
		Workers:        cfg.Dispatch.Workers,
		Buffer:         cfg.Dispatch.Buffer,
		MaxRetries:     cfg.Dispatch.MaxRetries,
		RetryDelay:     cfg.Dispatch.RetryDelay,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
	})
	if err := q.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	defer func() {
		if err := q.Stop(10 * time.Second); err != nil {
			log.WithError(err).Warn("dispatch queue did not drain")
		}
	}()

	e, err := newEngine(cfg, s, q)
	if err != nil {
		return err
	}
	if err := e.SyncActionTypes(ctx, actionTypes(cfg)); err != nil {
		return fmt.Errorf("sync action types: %w", err)
	}

	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(e),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).WithField("tenant", cfg.TenantID).Info("taskpool listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
