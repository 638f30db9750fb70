// cmd/seeder/main.go
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/unclebandit/scoutier-backend/internal/config"
	"github.com/unclebandit/scoutier-backend/internal/db"
	"github.com/unclebandit/scoutier-backend/internal/logger"
)

var (
	configPath = kingpin.Flag("config", "Path to an optional YAML config file.").Envar("CONFIG_PATH").String()
	schemaOnly = kingpin.Flag("schema-only", "Apply the schema without seed files.").Bool()
	seedFiles  = kingpin.Arg("files", "SQL seed files to execute after the schema.").Strings()
)

func main() {
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	sqlDB, err := db.Open(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer sqlDB.Close()

	if err := db.ApplySchema(ctx, sqlDB); err != nil {
		logrus.WithError(err).Fatal("failed to apply schema")
	}
	logrus.Info("schema applied")

	if *schemaOnly {
		return
	}

	for _, file := range *seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			logrus.WithError(err).Fatalf("failed to read %s", file)
		}

		if _, err := sqlDB.ExecContext(ctx, string(content)); err != nil {
			logrus.WithError(err).Fatalf("failed to execute %s", file)
		}
		logrus.WithField("file", file).Info("seeded")
	}

	logrus.Info("database seeding completed successfully")
}
