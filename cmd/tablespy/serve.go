package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/guillermoBallester/tablespy/internal/adapter/mcp"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var teardown bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio or streamable HTTP",
		Long: `serve keeps sniffers alive for the lifetime of the process, which is the
only way to use temporary collectors from outside a test binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer func() {
				closeCtx := context.WithoutCancel(ctx)
				if teardown {
					if err := a.sniffers.Shutdown(closeCtx); err != nil {
						a.logger.Warn("teardown incomplete", slog.String("error", err.Error()))
					}
				}
				a.Close(closeCtx)
			}()

			a.logger.Info("starting tablespy",
				slog.String("version", version),
				slog.String("transport", a.cfg.Transport),
				slog.Any("connections", a.conns.Names()),
			)

			srv := mcp.NewServer(version, mcp.Services{
				Connections: a.conns,
				Sniffers:    a.sniffers,
				Truncation:  a.truncation,
			}, a.logger, a.tracer, a.inst)

			if a.cfg.Transport == "http" {
				return serveHTTP(ctx, srv, a.cfg.HTTPAddr, a.cfg.HTTPBearerToken, a.logger)
			}

			a.logger.Info("serving MCP over stdio")
			if err := mcpserver.NewStdioServer(srv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server: %w", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("transport", "", "MCP transport: stdio or http (env: TABLESPY_TRANSPORT)")
	flags.String("http-addr", "", "listen address of the http transport (env: TABLESPY_HTTP_ADDR)")
	flags.String("http-bearer-token", "", "bearer token required by the http transport (env: TABLESPY_HTTP_BEARER_TOKEN)")
	flags.BoolVar(&teardown, "teardown-on-exit", false, "remove triggers and collectors of loaded sniffers on exit")
	return cmd
}

func serveHTTP(ctx context.Context, srv *mcpserver.MCPServer, addr, token string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", bearerAuthMiddleware(mcpserver.NewStreamableHTTPServer(srv), token))
	mux.HandleFunc("/health", healthHandler)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           recoveryMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over http", slog.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func bearerAuthMiddleware(next http.Handler, token string) http.Handler {
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		if !strings.HasPrefix(got, "Bearer ") || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoveryMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in http handler",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
