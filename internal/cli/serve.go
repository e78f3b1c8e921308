package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inventory-assistant/server/internal/agent/graph/conversations"
	"github.com/inventory-assistant/server/internal/agent/repo"
	"github.com/inventory-assistant/server/internal/server"
	logx "github.com/inventory-assistant/server/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat server",
	Long: `Start the HTTP server. Sessions and transcripts live in Redis; each
message runs the normalize and answer stages with retries.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	initLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return fmt.Errorf("initialise redis client: %w", err)
	}
	defer rdb.Close()
	logx.Info().Str("url", cfg.Redis.URL).Msg("connected to redis")

	normalizer, retriever, err := buildStages(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	sessions := conversations.NewManager(repo.NewRedisSessionRepository(rdb, cfg.Session))
	srv := server.New(cfg.Server, sessions, normalizer, retriever)
	return srv.Run(ctx)
}

