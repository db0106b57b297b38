// Package main (in enqueue-subfolder) submits thumbnail jobs and inspects or removes them
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
)

const usageText = `usage:
  enqueue submit [flags] <image-file>   upload an image and queue a thumbnail job
  enqueue status <job-id>               print the stored job as JSON
  enqueue delete <job-id>               remove a finished job with its objects

flags (also read from JOB_WIDTH, JOB_HEIGHT, ... env variables):
`

func main() {
	// инициализировать конфиг, флаги и энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	appConfig.SetDefault("LOG_LEVEL", "info")
	if err := defineJobFlags(appConfig); err != nil {
		log.Fatalf("Failed to define flags: %v", err)
	}
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		pflag.PrintDefaults()
	}
	if err := appConfig.ParseFlags(); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	args := pflag.Args()
	if len(args) != 2 {
		pflag.Usage()
		os.Exit(2)
	}

	zlog.InitConsole()
	if err := zlog.SetLevel(appConfig.GetString("LOG_LEVEL")); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "submit":
		err = submit(ctx, appConfig, args[1])
	case "status":
		err = status(ctx, appConfig, args[1])
	case "delete":
		err = remove(ctx, appConfig, args[1])
	default:
		pflag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", args[0], err)
	}
}

// defineJobFlags binds the job request flags to config keys under "job.".
func defineJobFlags(cfg *config.Config) error {
	flags := []struct {
		short, long string
		def         any
		usage       string
	}{
		{"w", "width", 0, "thumbnail width in pixels"},
		{"", "height", 0, "thumbnail height in pixels, 0 keeps the aspect ratio (crop only)"},
		{"m", "mode", string(model.ModeCrop), "crop or fit"},
		{"i", "interest", "", "crop anchor: centre, attention or entropy"},
		{"b", "background", "", "fit padding colour as #rrggbb"},
		{"f", "format", "", "output format: jpeg, png or empty to keep the source format"},
		{"q", "quality", 0, "JPEG quality 1..100, 0 uses JPEG_QUALITY"},
	}
	for _, f := range flags {
		if err := cfg.DefineFlag(f.short, f.long, "job."+f.long, f.def, f.usage); err != nil {
			return err
		}
	}
	return nil
}

// requestFromConfig collects the job request from flags or JOB_* env variables.
func requestFromConfig(cfg *config.Config) model.JobRequest {
	return model.JobRequest{
		Width:      cfg.GetInt("job.width"),
		Height:     cfg.GetInt("job.height"),
		Mode:       cfg.GetString("job.mode"),
		Interest:   cfg.GetString("job.interest"),
		Background: cfg.GetString("job.background"),
		Format:     cfg.GetString("job.format"),
		Quality:    cfg.GetInt("job.quality"),
	}
}
