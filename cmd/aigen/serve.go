package main

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/aigen/pkg/graph"
	"github.com/ravi-parthasarathy/aigen/pkg/server"
)

func serveCmd(a *app) *cobra.Command {
	var (
		addr     string
		storeDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compile/run/batch HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr()
			}
			if storeDir == "" {
				storeDir = a.cfg.Store.Dir
			}
			if strings.EqualFold(a.cfg.Log.Level, "debug") {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			client, err := a.newExecutor()
			if err != nil {
				return err
			}
			coord, err := a.newCoordinator()
			if err != nil {
				return err
			}
			srv := server.New(coord, server.Options{
				Addr:           addr,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				Store:          graph.NewStore(storeDir),
				ExecutorHealth: client.Health,
				Logger:         slog.Default(),
			})

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			slog.Info("serving", "addr", addr, "executor", client.BaseURL(), "store", storeDir)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")
	cmd.Flags().StringVar(&storeDir, "store", "", "directory for saved graph documents (default from store.dir)")
	return cmd
}
