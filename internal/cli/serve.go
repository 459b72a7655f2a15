package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/coordcard/internal/config"
	"github.com/lucasnoah/coordcard/internal/db"
	"github.com/lucasnoah/coordcard/internal/web"
)

const envAddr = "COORDCARD_ADDR"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine as a JSON HTTP API",
	Long: `Start an HTTP server exposing:

  GET  /healthz
  POST /v1/validate   card document -> {ok, errors}
  POST /v1/score      {text, manual} -> score
  POST /v1/next       {card, state, score|text, conversation} -> next step

Requests to /v1/next that carry a conversation id are recorded in the
decision log unless --no-log is given or server.log_decisions is false in
the config file. The server stops on SIGINT/SIGTERM.`,
	Args: exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		noLog, _ := cmd.Flags().GetBool("no-log")
		if !cmd.Flags().Changed("addr") {
			addr = cfg.Server.Addr
			if v := os.Getenv(envAddr); v != "" {
				addr = v
			}
		}

		var database *db.DB
		if !noLog && cfg.Server.DecisionLogging() {
			d, cleanup, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			database = d
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("starting server", zap.String("addr", addr), zap.Bool("decisionLog", database != nil))
		return web.NewServer(database, logger).Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", config.DefaultAddr, "Address to listen on (env COORDCARD_ADDR, config server.addr)")
	serveCmd.Flags().Bool("no-log", false, "Do not record decisions")
}
