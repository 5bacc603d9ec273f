package main

import (
	"MediaVault/config"
	"MediaVault/internal/jobs"
	"MediaVault/internal/notify"
	"MediaVault/internal/repo"
	"MediaVault/internal/storage"
	"MediaVault/internal/worker"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	config.InitConfig()
	repo.InitMysql()
	repo.InitRedis()
	storage.InitStorage()
	notify.InitNotifier()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kicker := jobs.NewKicker(jobs.ProcessJob, jobs.RunBatch)

	log.Println("job worker started")
	if err := worker.RunJobWorker(ctx, kicker); err != nil {
		log.Fatalf("job worker stopped: %v", err)
	}
}
