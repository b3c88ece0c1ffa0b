package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbot-parser/internal/app"
	"chatbot-parser/internal/server"
	"chatbot-parser/internal/transport/telegram"
	"chatbot-parser/pkg/registry"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var registryPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Zeebe workers, HTTP API and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, registryPath)
		},
	}
	cmd.Flags().StringVar(&registryPath, "registry", "", "activity registry JSON (default: built-in)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, registryPath string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	zapLog, log := root.newLogger(cfg, "")
	defer zapLog.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown incomplete", map[string]interface{}{"error": err.Error()})
		}
	}()

	if cfg.Camunda.BrokerAddress != "" {
		reg := registry.Default()
		if registryPath != "" {
			if reg, err = registry.LoadRegistry(registryPath); err != nil {
				return err
			}
		}
		stopWorkers, err := a.StartWorkers(ctx, reg)
		if err != nil {
			log.Error("workers failed to start", map[string]interface{}{"error": err.Error()})
			return err
		}
		defer stopWorkers()
	}

	errCh := make(chan error, 1)

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server, a.Service, log, a.Checks...)
		go func() {
			if err := srv.Listen(); err != nil {
				errCh <- err
			}
		}()
	}

	if cfg.Telegram.Enabled {
		b, err := telegram.New(cfg.Telegram.Token, telegram.NewHandler(a.Service, log))
		if err != nil {
			return err
		}
		go telegram.Run(ctx, b, log)
	}

	log.Info("chatbot running", map[string]interface{}{
		"http":     cfg.Server.Enabled,
		"telegram": cfg.Telegram.Enabled,
		"workers":  cfg.Camunda.BrokerAddress != "",
	})

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received", nil)
	case err := <-errCh:
		log.Error("http server failed", map[string]interface{}{"error": err.Error()})
		return err
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	log.Info("chatbot stopped", nil)
	return nil
}
