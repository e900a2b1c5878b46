package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/db"
	"github.com/kovanet/kovascan/internal/ingester"
	"github.com/kovanet/kovascan/internal/rpc"
	"github.com/kovanet/kovascan/internal/storage"
)

var (
	ingesterCmd = &cobra.Command{
		Use:   "ingester",
		Short: "Run the block ingestion loop",
		Long:  "Follows the chain head one block at a time and writes blocks, transactions and derived rows into storage.",
		Run: func(cmd *cobra.Command, args []string) {
			RunIngester(cmd, args)
		},
	}
)

func RunIngester(cmd *cobra.Command, args []string) {
	s, err := storage.NewConnector(&config.Cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	RunIngesterWithStorage(s)
}

// RunIngesterWithStorage drives the ingestion loop over an existing storage
// connector. The combined root command uses it so the ingester and the API
// share one connector instead of each opening their own.
func RunIngesterWithStorage(s storage.IStorage) {
	if !config.Cfg.Ingester.Enabled {
		log.Info().Msg("Ingester is disabled, not starting")
		return
	}

	if err := db.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	rpcClient, err := rpc.Initialize()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize node client")
	}
	defer rpcClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ing := ingester.NewIngester(rpcClient, s)
	if err := ing.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Ingester stopped")
	}
}
