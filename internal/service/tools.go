package service

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/UnendingLoop/ImageThumbnailer/internal/imager"
	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/config"
)

// defaultMaxPixels bounds both the decoded source and every raster the pipeline allocates.
const defaultMaxPixels = 8192 * 8192

// maxSide keeps thumbnail sides within the INTEGER columns of the jobs table.
const maxSide = math.MaxInt32

// limitsFromConfig reads the pixel budget and the default JPEG quality,
// falling back to the defaults for out of range values.
func limitsFromConfig(cfg *config.Config) (maxPixels, jpegQuality int) {
	cfg.SetDefault("MAX_PIXELS", defaultMaxPixels)
	cfg.SetDefault("JPEG_QUALITY", imager.DefaultJPEGQuality)

	maxPixels = cfg.GetInt("MAX_PIXELS")
	if maxPixels <= 0 {
		log.Printf("Incorrect MAX_PIXELS value %d, using default %d", maxPixels, defaultMaxPixels)
		maxPixels = defaultMaxPixels
	}
	jpegQuality = cfg.GetInt("JPEG_QUALITY")
	if jpegQuality < 1 || jpegQuality > 100 {
		log.Printf("Incorrect JPEG_QUALITY value %d, using default %d", jpegQuality, imager.DefaultJPEGQuality)
		jpegQuality = imager.DefaultJPEGQuality
	}
	return maxPixels, jpegQuality
}

// newJob builds a job from a queue request, normalising its free-form fields.
func newJob(id uuid.UUID, req model.JobRequest) *model.Job {
	mode := model.Mode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if mode == "" {
		mode = model.ModeCrop
	}
	return &model.Job{
		UID:        id,
		SourceKey:  strings.TrimSpace(req.SourceKey),
		Width:      req.Width,
		Height:     req.Height,
		Mode:       mode,
		Interest:   strings.ToLower(strings.TrimSpace(req.Interest)),
		Background: strings.ToLower(strings.TrimSpace(req.Background)),
		Format:     strings.ToLower(strings.TrimSpace(req.Format)),
		Quality:    req.Quality,
	}
}

// Options validates a job and translates it into pipeline options.
func (c JobService) Options(job *model.Job) (imager.Options, error) {
	var opts imager.Options

	if job.SourceKey == "" {
		return opts, model.ErrEmptySource
	}

	if !model.ModesMap[job.Mode] {
		return opts, fmt.Errorf("%w: %q", model.ErrIncorrectMode, job.Mode)
	}
	mode, err := imager.ParseResizeMode(string(job.Mode))
	if err != nil {
		return opts, fmt.Errorf("%w: %v", model.ErrIncorrectMode, err)
	}

	if job.Width <= 0 || job.Height < 0 || job.Width > maxSide || job.Height > maxSide ||
		(mode == imager.ModeFit && job.Height == 0) {
		return opts, fmt.Errorf("%w: %dx%d", model.ErrIncorrectSize, job.Width, job.Height)
	}
	// a zero height is derived from the source and bounded by the pipeline
	if c.maxPixels > 0 && job.Width > c.maxPixels/max(job.Height, 1) {
		return opts, fmt.Errorf("%w: %dx%d exceeds %d pixels", model.ErrIncorrectSize, job.Width, job.Height, c.maxPixels)
	}

	interest, err := imager.ParseInterest(job.Interest)
	if err != nil {
		return opts, fmt.Errorf("%w: %q", model.ErrIncorrectInterest, job.Interest)
	}

	var background *imager.Color
	if job.Background != "" {
		bg, err := imager.ParseHexColor(job.Background)
		if err != nil {
			return opts, fmt.Errorf("%w: %q", model.ErrIncorrectBackground, job.Background)
		}
		background = &bg
	}

	format, err := imager.ParseFormat(job.Format)
	if err != nil {
		return opts, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, job.Format)
	}

	quality := job.Quality
	switch {
	case quality < 0 || quality > 100:
		return opts, fmt.Errorf("%w: %d", model.ErrIncorrectQuality, quality)
	case quality == 0:
		quality = c.jpegQuality
	}

	return imager.Options{
		Width:      job.Width,
		Height:     job.Height,
		Mode:       mode,
		Interest:   interest,
		Background: background,
		Format:     format,
		Quality:    quality,
		MaxPixels:  c.maxPixels,
	}, nil
}
