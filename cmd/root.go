package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configs "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/handlers"
	customLogger "github.com/kovanet/kovascan/internal/log"
	"github.com/kovanet/kovascan/internal/storage"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "kovascan",
		Short: "Chain explorer backend: ingester and query API",
		Long:  "Ingests canonical chain data from a node into a relational store and serves the explorer query API.",
		Run: func(cmd *cobra.Command, args []string) {
			// One connector for both halves, so the memory driver's store
			// is visible to the API.
			s, err := storage.NewConnector(&configs.Cfg.Storage)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize storage")
			}
			handlers.SetMainStorage(s)
			go func() {
				RunIngesterWithStorage(s)
			}()
			RunApi(cmd, args)
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().String("rpc-url", "", "Node URL to ingest blocks from")
	rootCmd.PersistentFlags().Int("rpc-timeout", 30, "Node request timeout in seconds")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().Bool("ingester-enabled", true, "Toggle ingester")
	rootCmd.PersistentFlags().Int64("ingester-from-height", 0, "Height to start ingesting from on an empty store")
	rootCmd.PersistentFlags().Int("ingester-poll-interval", 2000, "How often to poll for new blocks in milliseconds")
	rootCmd.PersistentFlags().Int("ingester-retry-backoff", 500, "Backoff between transient error retries in milliseconds")
	rootCmd.PersistentFlags().Int("ingester-max-retries", 5, "How many times to retry a transient fetch failure")
	rootCmd.PersistentFlags().String("api-host", "", "Interface for the API to bind to")
	rootCmd.PersistentFlags().Int("api-port", 3000, "API port to listen on")
	rootCmd.PersistentFlags().String("storage-postgres-host", "", "Postgres host for main storage")
	rootCmd.PersistentFlags().Int("storage-postgres-port", 5432, "Postgres port for main storage")
	rootCmd.PersistentFlags().String("storage-postgres-username", "", "Postgres username for main storage")
	rootCmd.PersistentFlags().String("storage-postgres-password", "", "Postgres password for main storage")
	rootCmd.PersistentFlags().String("storage-postgres-database", "", "Postgres database for main storage")
	rootCmd.PersistentFlags().String("storage-postgres-sslMode", "disable", "Postgres SSL mode")
	rootCmd.PersistentFlags().Int("storage-memory-maxItems", 10000, "Max items for memory storage")
	viper.BindPFlag("rpc.url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	viper.BindPFlag("rpc.timeoutSeconds", rootCmd.PersistentFlags().Lookup("rpc-timeout"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("ingester.enabled", rootCmd.PersistentFlags().Lookup("ingester-enabled"))
	viper.BindPFlag("ingester.fromHeight", rootCmd.PersistentFlags().Lookup("ingester-from-height"))
	viper.BindPFlag("ingester.pollIntervalMs", rootCmd.PersistentFlags().Lookup("ingester-poll-interval"))
	viper.BindPFlag("ingester.retryBackoffMs", rootCmd.PersistentFlags().Lookup("ingester-retry-backoff"))
	viper.BindPFlag("ingester.maxRetries", rootCmd.PersistentFlags().Lookup("ingester-max-retries"))
	viper.BindPFlag("api.host", rootCmd.PersistentFlags().Lookup("api-host"))
	viper.BindPFlag("api.port", rootCmd.PersistentFlags().Lookup("api-port"))
	viper.BindPFlag("storage.postgres.host", rootCmd.PersistentFlags().Lookup("storage-postgres-host"))
	viper.BindPFlag("storage.postgres.port", rootCmd.PersistentFlags().Lookup("storage-postgres-port"))
	viper.BindPFlag("storage.postgres.username", rootCmd.PersistentFlags().Lookup("storage-postgres-username"))
	viper.BindPFlag("storage.postgres.password", rootCmd.PersistentFlags().Lookup("storage-postgres-password"))
	viper.BindPFlag("storage.postgres.database", rootCmd.PersistentFlags().Lookup("storage-postgres-database"))
	viper.BindPFlag("storage.postgres.sslMode", rootCmd.PersistentFlags().Lookup("storage-postgres-sslMode"))
	viper.BindPFlag("storage.memory.maxItems", rootCmd.PersistentFlags().Lookup("storage-memory-maxItems"))
	rootCmd.AddCommand(ingesterCmd)
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
}

func initConfig() {
	if err := configs.LoadConfig(cfgFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	customLogger.InitLogger()
}
