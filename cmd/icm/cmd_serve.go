package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/mcp"
	"github.com/icm-memory/icm/internal/ratelimit"
	"github.com/icm-memory/icm/internal/transport/httpapi"
)

var (
	serveTransport string
	servePort      int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ICM as a tool server",
	Long: `Starts ICM's 16-tool surface, either as stdio-framed JSON-RPC 2.0 (the
MCP transport agents speak) or as an HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport := serveTransport
		if transport == "" {
			transport = current.cfg.Server.Transport
		}

		server := mcp.NewServer(mcp.Deps{
			Store: current.store, Engine: current.engine, Lifecycle: current.lifecycle,
			Graph: current.graph, Embedder: current.embedder, RateLimiter: ratelimit.DefaultConfig(),
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		switch transport {
		case "stdio":
			err := server.Run(ctx)
			if err != nil && err == context.Canceled {
				return icmerr.New(icmerr.Cancelled, "interrupted")
			}
			return err
		case "http":
			port := servePort
			if port == 0 {
				port = current.cfg.Server.Port
			}
			httpServer := httpapi.NewServer(server, httpapi.Config{Host: current.cfg.Server.Host, Port: port, CORS: true})
			fmt.Printf("listening on %s:%d\n", current.cfg.Server.Host, port)
			return httpServer.Run(ctx, current.cfg.Server.Host, port)
		default:
			return icmerr.Newf(icmerr.InvalidInput, "unknown transport: %s", transport)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "stdio or http (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "http port (default from config)")
}
