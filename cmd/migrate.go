package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kovanet/kovascan/db"
)

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Run: func(cmd *cobra.Command, args []string) {
			if err := db.RunMigrations(); err != nil {
				log.Fatal().Err(err).Msg("Migrations failed")
			}
		},
	}
)
