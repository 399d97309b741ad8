package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadops-cli/internal/api"
	"github.com/sells-group/leadops-cli/internal/digest"
	"github.com/sells-group/leadops-cli/internal/monitoring"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report API",
	Long:  "Serves the cohort, funnel-channel and duplicates reports and the lead upload endpoint. With monitoring.enabled a background checker alerts the chat about failing or stale jobs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer e.Close()

		if cfg.Monitoring.Enabled {
			startMonitoring(ctx, e)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewRouter(e.Pipeline, e.Store, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(sctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func startMonitoring(ctx context.Context, e *env) {
	var sender monitoring.Sender
	if cfg.Digest.WebhookURL != "" {
		sender = digest.NewWebhook(cfg.Digest)
	} else {
		zap.L().Warn("monitoring enabled without digest.webhook_url, alerts are logged only")
	}
	alerter := monitoring.NewAlerter(cfg.Monitoring, sender)
	checker := monitoring.NewChecker(monitoring.NewCollector(e.Store), alerter, cfg.Monitoring)
	go checker.Run(ctx)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
