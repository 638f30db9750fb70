// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/unclebandit/scoutier-backend/internal/config"
	"github.com/unclebandit/scoutier-backend/internal/db"
	"github.com/unclebandit/scoutier-backend/internal/lock"
	"github.com/unclebandit/scoutier-backend/internal/logger"
	"github.com/unclebandit/scoutier-backend/internal/mailer"
	"github.com/unclebandit/scoutier-backend/internal/queue"
	"github.com/unclebandit/scoutier-backend/internal/repository"
	"github.com/unclebandit/scoutier-backend/internal/service"
	"github.com/unclebandit/scoutier-backend/internal/validator"
)

var (
	configPath = kingpin.Flag("config", "Path to an optional YAML config file.").Envar("CONFIG_PATH").String()
	once       = kingpin.Flag("once", "Run a single tick and exit (for cron).").Bool()
)

func main() {
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to DB
	sqlDB, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer sqlDB.Close()

	redisClient, err := db.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logrus.Warn("REDIS_URL not set, campaign locks only cover this process")
	}

	m, err := mailer.FromConfig(ctx, cfg.Mail)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure mail transport")
	}

	engine := service.NewDispatchEngine(
		&repository.CampaignRepository{DB: sqlDB},
		&repository.ContactRepository{DB: sqlDB},
		validator.New(nil),
		m,
		lock.New(redisClient, cfg.Dispatch.LockTTL),
		cfg.Dispatch,
	)

	if *once {
		report := service.NewWorker(engine, cfg.Dispatch.TickInterval, nil).RunOnce(ctx)
		logrus.WithField("report", report).Info("single tick finished")
		return
	}

	jobs := make(chan string, 64)
	if cfg.AMQPURL != "" {
		// Connect to RabbitMQ
		q, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to queue")
		}
		defer q.Close()

		err = queue.SubscribeCampaigns(q, func(id string) error {
			select {
			case jobs <- id:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			logrus.WithError(err).Fatal("failed to register consumer")
		}
		logrus.WithField("topic", queue.DispatchTopic).Info("consuming dispatch jobs")
	}

	logrus.WithFields(logrus.Fields{
		"tick_interval":    cfg.Dispatch.TickInterval,
		"ticks_per_minute": cfg.Dispatch.TicksPerMinute(),
	}).Info("dispatch worker running")
	service.NewWorker(engine, cfg.Dispatch.TickInterval, jobs).Start(ctx)
}
