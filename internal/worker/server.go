package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mao1229/moemail/internal/config"
	"github.com/Mao1229/moemail/internal/infra/redisstore"
	"github.com/Mao1229/moemail/internal/infra/sqlstore"
	"github.com/Mao1229/moemail/internal/usecase"
)

type Config struct {
	ConsumerName string
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

func Run(cfg Config) error {
	appCfg := config.Load()
	cli := redisstore.New(appCfg.Redis)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Init(ctx); err != nil {
		return err
	}

	db, err := sqlstore.Open(appCfg.Storage.Dir)
	if err != nil {
		return err
	}
	defer db.Close()

	// Move delayed retriggers back onto the stream
	sched := redisstore.NewScheduler(cli, 1*time.Second)
	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("scheduler stopped with error")
		}
	}()

	proc := &usecase.Processor{
		Tasks:        cli,
		Addresses:    db,
		Records:      db,
		Gen:          usecase.Generator{Addresses: db},
		ChunkSize:    appCfg.Batch.ChunkSize,
		SubBatchSize: appCfg.Batch.SubBatchSize,
	}

	consumer := usecase.Consumer{
		Queue:        cli,
		Processor:    proc,
		ConsumerName: cfg.ConsumerName,
		BaseBackoff:  cfg.BaseBackoff,
		MaxBackoff:   cfg.MaxBackoff,
	}

	return consumer.Run(ctx)
}
