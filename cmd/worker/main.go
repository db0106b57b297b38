// Package main (in worker-subfolder) launches the thumbnail worker
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageThumbnailer/internal/kafka"
	"github.com/UnendingLoop/ImageThumbnailer/internal/repository"
	"github.com/UnendingLoop/ImageThumbnailer/internal/service"
	"github.com/UnendingLoop/ImageThumbnailer/internal/storage"
	"github.com/UnendingLoop/ImageThumbnailer/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	appConfig.SetDefault("LOG_LEVEL", "info")
	appConfig.SetDefault("MIGRATIONS_PATH", "./migrations")
	appConfig.SetDefault("WORKER_CONCURRENCY", 4)
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(appConfig.GetString("LOG_LEVEL")); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключиться к базе и накатить миграции
	dbConn, err := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	if err != nil {
		log.Fatalf("%v. Exiting the app...", err)
	}
	if err := repository.MigrateWithRetries(dbConn.Master, appConfig.GetString("MIGRATIONS_PATH"), 10, 15*time.Second); err != nil {
		log.Fatalf("%v. Exiting the app...", err)
	}

	// подключиться к хранилищу
	strg, err := storage.NewObjectStorage(ctx, appConfig, 10*time.Second)
	if err != nil {
		log.Fatalf("Object storage unavailable: %v. Exiting the app...", err)
	}
	repo := repository.NewPostgresJobRepo(dbConn)

	// ждем пока кафка поднимется и создаем топик
	broker := appConfig.GetString("KAFKA_BROKER")
	topic := appConfig.GetString("KAFKA_TOPIC")
	if err := kafka.WaitKafkaReady(ctx, broker, 5*time.Second); err != nil {
		log.Fatalf("Kafka unavailable: %v. Exiting the app...", err)
	}
	if err := kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic); err != nil {
		log.Fatalf("Failed to init kafka topics: %v. Exiting the app...", err)
	}

	// продюсер нужен только для повторной публикации зависших задач
	pub := wbfkafka.NewProducer([]string{broker}, topic)
	svc := service.NewJobService(appConfig, repo, pub, strg)

	queue := make(chan kafkago.Message)
	consumeStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{broker}, topic, appConfig.GetString("KAFKA_GROUPID"))
	cons.StartConsuming(ctx, queue, consumeStrategy)

	w := worker.NewWorkerInstance(strg, svc, queue, cons, appConfig.GetString("RESULT_KEY"), appConfig.GetInt("WORKER_CONCURRENCY"))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		w.StartWorker(ctx)
	}()

	// фоновый цикл для подвисших задач
	go recoveryLoop(ctx, svc)

	zlog.Logger.Info().Str("topic", topic).Msg("Worker started")

	<-ctx.Done()
	<-workerDone

	shutdown(cons, pub, dbConn)
	log.Println("Exiting worker...")
}

func recoveryLoop(ctx context.Context, svc OrphanReviver) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Recovery loop crashed:", r)
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(ctx, 20)
		}
	}
}

func shutdown(cons *wbfkafka.Consumer, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-writer:", err)
	}
	log.Println("Kafka-producer connection closed.")

	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
