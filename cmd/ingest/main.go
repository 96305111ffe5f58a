package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chatdeck/webhook-gateway/internal/config"
	"github.com/chatdeck/webhook-gateway/internal/ingest"
	"github.com/chatdeck/webhook-gateway/internal/repository"
	"github.com/chatdeck/webhook-gateway/pkg/logger"
	"github.com/chatdeck/webhook-gateway/pkg/pg"
)

// Ingests a directory of payload documents into the message store.
//
//	ingest --env=.env --dir=./payloads
//	ingest --env=.env --dir=./payloads --watch
//
// Without --watch the batch is processed in two passes and the process
// exits. With --watch the directory is also watched for new files until
// the process is signalled.
func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	pendingRepo := repository.NewPendingStatusRepository(db)
	reconciler := ingest.NewReconciler(messageRepo, pendingRepo)

	dir := payloadDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := ingest.NewDriver(reconciler)
	stats, err := driver.Run(ctx, ingest.NewDirectorySource(dir))
	if err != nil {
		logger.Error("batch ingestion failed", "dir", dir, "error", err)
		return
	}
	logger.Info("batch ingestion finished",
		"dir", dir,
		"messages", stats.Messages,
		"statuses", stats.Statuses,
		"unknown", stats.Unknown)

	if !argContainsWatch() {
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	watcher := ingest.NewWatcher(dir, reconciler)
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("watcher stopped", "error", err)
	}
}

func payloadDir() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the payload directory, got error" + err.Error())
				return config.Get().PayloadDir
			}
			return s[1]
		}
	}
	return config.Get().PayloadDir
}

func argContainsWatch() bool {
	for _, v := range os.Args {
		if v == "--watch" {
			return true
		}
	}
	return false
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
