// Package server implements the ipamd server command.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paularlott/cli"

	"github.com/mhaustein/ipamd/internal/api"
	"github.com/mhaustein/ipamd/internal/config"
	"github.com/mhaustein/ipamd/internal/log"
	"github.com/mhaustein/ipamd/internal/mcp"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/report"
	"github.com/mhaustein/ipamd/internal/storage"
	"github.com/mhaustein/ipamd/internal/worker"
)

// Command returns the server command.
func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the ipamd server",
		Description: "Start the HTTP server with the management API, MCP endpoint and audit scheduler",
		Flags:       config.GetFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				log.Error("Failed to load configuration", "error", err)
				return err
			}

			log.Info("Configuration loaded", "source", cfg.String(),
				"data_dir", cfg.DataDir, "listen_addr", cfg.ListenAddr)

			store, err := storage.NewSQLiteStore(cfg.DataDir)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Storage initialized", "path", store.DatabasePath())

			reg := registry.New(store)
			reporter := report.New(store, reg)

			// Background audit: utilization snapshots plus overdue
			// firewall check warnings.
			pool := worker.NewPool(cfg.AuditWorkers)
			pool.Start()
			defer pool.Stop()

			scheduler := worker.NewScheduler(store, reg, reporter, pool, cfg.AuditSchedule)
			if err := scheduler.Start(); err != nil {
				log.Error("Failed to start audit scheduler", "error", err)
				return err
			}
			defer scheduler.Stop()

			apiHandler := api.NewHandler(store, reg, reporter)
			mcpServer := mcp.NewServer(store, reg, reporter, cfg.MCPToken)

			return run(cfg, apiHandler, mcpServer)
		},
	}
}

// run assembles the HTTP stack and serves until interrupted.
func run(cfg *config.Config, apiHandler *api.Handler, mcpServer *mcp.Server) error {
	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)
	mux.HandleFunc("/mcp", mcpServer.GetHTTPHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	var handler http.Handler = mux
	if cfg.IsAPIAuthEnabled() {
		handler = api.AuthMiddleware(cfg.APIToken, handler)
	}
	handler = api.SecurityHeadersMiddleware(handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down server...")
		server.Close()
	}()

	log.Info("Starting ipamd server", "addr", cfg.ListenAddr)
	log.Info("API available", "url", "http://localhost"+cfg.ListenAddr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+cfg.ListenAddr+"/mcp")
	if cfg.IsAPIAuthEnabled() {
		log.Info("API authentication enabled")
	}
	if cfg.IsMCPAuthEnabled() {
		log.Info("MCP authentication enabled")
	}
	mcpServer.LogStartup()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}
