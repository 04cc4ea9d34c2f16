package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Mao1229/moemail/internal/api"
	"github.com/Mao1229/moemail/internal/config"
	"github.com/Mao1229/moemail/internal/infra/redisstore"
	"github.com/Mao1229/moemail/internal/infra/sqlstore"
	"github.com/Mao1229/moemail/internal/usecase"
)

func apiCmd() *cobra.Command {
	var port int
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setLogLevel(cfg.LogLevel)

			ctx := context.Background()
			cli := redisstore.New(cfg.Redis)
			if err := cli.Init(ctx); err != nil {
				return err
			}

			db, err := sqlstore.Open(cfg.Storage.Dir)
			if err != nil {
				return err
			}
			defer db.Close()

			proc := &usecase.Processor{
				Tasks:        cli,
				Addresses:    db,
				Records:      db,
				Gen:          usecase.Generator{Addresses: db},
				ChunkSize:    cfg.Batch.ChunkSize,
				SubBatchSize: cfg.Batch.SubBatchSize,
			}

			server := api.NewServer(api.Deps{
				Driver: usecase.Driver{
					Tasks:     cli,
					Addresses: db,
					Triggers:  cli,
					Batch:     cfg.Batch,
					Quota:     cfg.Quota,
				},
				Processor: proc,
				History: usecase.History{
					Tasks:     cli,
					Records:   db,
					Addresses: db,
				},
				Users: api.HeaderUserContext{},
			})

			if port == 0 {
				port = cfg.HTTP.Port
			}
			server.Run(port)
			return nil
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 0, "Port to run the server on (default from config)")
	return command
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Info().Msgf("log level set to %s", lvl)
}
