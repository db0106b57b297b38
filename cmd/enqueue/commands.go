package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/UnendingLoop/ImageThumbnailer/internal/imager"
	"github.com/UnendingLoop/ImageThumbnailer/internal/jobctx"
	"github.com/UnendingLoop/ImageThumbnailer/internal/kafka"
	"github.com/UnendingLoop/ImageThumbnailer/internal/repository"
	"github.com/UnendingLoop/ImageThumbnailer/internal/service"
	"github.com/UnendingLoop/ImageThumbnailer/internal/storage"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
)

func submit(ctx context.Context, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format := imager.DetectFormat(data)
	if format == imager.Unknown {
		return fmt.Errorf("%q is neither JPEG nor PNG", path)
	}

	dbConn, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer dbConn.Master.Close()

	strg, err := storage.NewObjectStorage(ctx, cfg, 5*time.Second)
	if err != nil {
		return fmt.Errorf("object storage unavailable: %w", err)
	}

	broker := cfg.GetString("KAFKA_BROKER")
	topic := cfg.GetString("KAFKA_TOPIC")
	if err := kafka.InitKafkaTopics(ctx, broker, 5*time.Second, topic); err != nil {
		return fmt.Errorf("failed to init kafka topics: %w", err)
	}
	pub := wbfkafka.NewProducer([]string{broker}, topic)
	defer pub.Close()

	svc := service.NewJobService(cfg, repository.NewPostgresJobRepo(dbConn), pub, strg)
	job, err := svc.Submit(jobctx.WithSource(ctx, path), requestFromConfig(cfg), bytes.NewReader(data), int64(len(data)), format.ContentType())
	if err != nil {
		return err
	}

	fmt.Println(job.UID.String())
	return nil
}

func status(ctx context.Context, cfg *config.Config, id string) error {
	dbConn, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer dbConn.Master.Close()

	svc := service.NewJobService(cfg, repository.NewPostgresJobRepo(dbConn), nil, nil)
	job, err := svc.Get(jobctx.WithJob(ctx, id), id)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func remove(ctx context.Context, cfg *config.Config, id string) error {
	dbConn, err := connectDB(cfg)
	if err != nil {
		return err
	}
	defer dbConn.Master.Close()

	strg, err := storage.NewObjectStorage(ctx, cfg, 5*time.Second)
	if err != nil {
		return fmt.Errorf("object storage unavailable: %w", err)
	}

	svc := service.NewJobService(cfg, repository.NewPostgresJobRepo(dbConn), nil, strg)
	if err := svc.Delete(jobctx.WithJob(ctx, id), id); err != nil {
		return err
	}

	fmt.Println("deleted", id)
	return nil
}

func connectDB(cfg *config.Config) (*dbpg.DB, error) {
	return repository.ConnectWithRetries(cfg, 3, 5*time.Second)
}
