// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/unclebandit/scoutier-backend/internal/config"
	"github.com/unclebandit/scoutier-backend/internal/controller"
	"github.com/unclebandit/scoutier-backend/internal/db"
	"github.com/unclebandit/scoutier-backend/internal/handler"
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
	dispatch   = kingpin.Flag("dispatch", "Also run the periodic dispatch worker in this process.").Bool()
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

	// Init DB
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
	}

	m, err := mailer.FromConfig(ctx, cfg.Mail)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure mail transport")
	}

	campaignRepo := &repository.CampaignRepository{DB: sqlDB}
	contactRepo := &repository.ContactRepository{DB: sqlDB}

	engine := service.NewDispatchEngine(
		campaignRepo,
		contactRepo,
		validator.New(nil),
		m,
		lock.New(redisClient, cfg.Dispatch.LockTTL),
		cfg.Dispatch,
	)

	// Dispatch jobs go to RabbitMQ for cmd/worker when configured; otherwise
	// they are handled in-process.
	var q queue.Queue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to queue")
		}
		defer amqpQueue.Close()
		q = amqpQueue
	} else {
		memQueue := queue.NewInMemoryQueue()
		err := queue.SubscribeCampaigns(memQueue, func(id string) error {
			return engine.HandleDispatchJob(ctx, id)
		})
		if err != nil {
			logrus.WithError(err).Fatal("failed to subscribe dispatch jobs")
		}
		q = memQueue
	}

	if *dispatch {
		go service.NewWorker(engine, cfg.Dispatch.TickInterval, nil).Start(ctx)
	}

	contactService := &service.ContactService{ContactRepo: contactRepo}
	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		ContactRepo:  contactRepo,
		Dispatcher:   engine,
		Queue:        q,
	}

	r := handler.NewRouter(handler.Routes{
		Campaigns:          &controller.CampaignController{CampaignService: campaignService},
		Contacts:           &handler.ContactHandler{Service: contactService},
		Extraction:         &handler.ExtractionHandler{Contacts: contactService},
		Dispatch:           &handler.DispatchHandler{Engine: engine},
		ParseRatePerMinute: cfg.ParseRatePerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("server shutdown")
		}
	}()

	logrus.WithField("addr", cfg.HTTPAddr).Info("server running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("server failed")
	}
}
