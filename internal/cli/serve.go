package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mt5-bridge/internal/api"
	"mt5-bridge/internal/config"
	"mt5-bridge/internal/mcp"
)

const shutdownTimeout = 10 * time.Second

const serverInstructions = `Tools for a MetaTrader 5 trading account. Tables are returned as CSV,
objects as JSON. Trade tools return {"error", "message", "data"}.`

func addServeCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the terminal over MCP or HTTP",
	}
	cmd.AddCommand(newServeMCPCmd(app))
	cmd.AddCommand(newServeAPICmd(app))
	rootCmd.AddCommand(cmd)
}

func listenFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", "", "bind host (default: server.host)")
	cmd.Flags().Int("port", 0, "bind port (default: server.port)")
}

func listenAddr(cmd *cobra.Command, cfg *config.Config) string {
	host := cfg.Server.Host
	if h, _ := cmd.Flags().GetString("host"); h != "" {
		host = h
	}
	port := cfg.Server.Port
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		port = p
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func newServeMCPCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the terminal tools over the Model Context Protocol",
		Example: `  mt5-bridge serve mcp
  mt5-bridge serve mcp --transport http --port 8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport := app.Config.Server.Transport
			if t, _ := cmd.Flags().GetString("transport"); t != "" {
				transport = strings.ToLower(t)
			}

			reg, err := app.Tools(cmd.Context())
			if err != nil {
				return err
			}
			server := mcp.NewServer(reg, mcp.Options{
				Version:      Version,
				Instructions: serverInstructions,
				Logger:       app.Logger,
			})

			switch transport {
			case config.TransportStdio:
				return server.ServeStdio(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			case config.TransportHTTP:
				return app.listen(cmd.Context(), listenAddr(cmd, app.Config), server.NewHTTPHandler("/mcp"))
			default:
				return fmt.Errorf("unknown transport %q (want stdio or http)", transport)
			}
		},
	}
	cmd.Flags().String("transport", "", "transport: stdio or http (default: server.transport)")
	listenFlags(cmd)
	return cmd
}

func newServeAPICmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve the REST API with its OpenAPI description",
		Example: `  mt5-bridge serve api --port 8000
  curl http://127.0.0.1:8000/api/v1/account/info`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.Client(cmd.Context())
			if err != nil {
				return err
			}
			reg, err := app.Tools(cmd.Context())
			if err != nil {
				return err
			}
			server := api.NewServer(c, reg, api.Options{
				Prefix:  app.Config.Server.APIPrefix,
				Version: Version,
				Logger:  app.Logger,
			})
			return app.listen(cmd.Context(), listenAddr(cmd, app.Config), server.Router())
		},
	}
	listenFlags(cmd)
	return cmd
}

// listen serves handler on addr until ctx is cancelled.
func (a *App) listen(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.Logger.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
			return err
		}
		return nil
	}
}
