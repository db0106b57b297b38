// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	Status string
	Mode   string
)

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

// Terminal reports whether a job in this status must not be processed again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

const (
	ModeCrop Mode = "crop"
	ModeFit  Mode = "fit"
)

var ModesMap = map[Mode]bool{
	ModeCrop: true,
	ModeFit:  true,
}

//---------------------

// Job is a thumbnail task as stored in the jobs table.
type Job struct {
	UID        uuid.UUID   `json:"uid"`
	SourceKey  string      `json:"source_key"`
	ResultKey  string      `json:"result_key,omitempty"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Mode       Mode        `json:"mode"`
	Interest   string      `json:"interest,omitempty"`
	Background string      `json:"background,omitempty"`
	Format     string      `json:"format,omitempty"`
	Quality    int         `json:"quality,omitempty"`
	Status     Status      `json:"status,omitempty"`
	ErrMsg     StringSlice `json:"error,omitempty"`
	ETag       string      `json:"etag,omitempty"`
	CreatedAt  *time.Time  `json:"created_at,omitempty"`
	UpdatedAt  *time.Time  `json:"updated_at,omitempty"`
}

// Request rebuilds the queue payload the job was created from.
func (j *Job) Request() JobRequest {
	return JobRequest{
		SourceKey:  j.SourceKey,
		Width:      j.Width,
		Height:     j.Height,
		Mode:       string(j.Mode),
		Interest:   j.Interest,
		Background: j.Background,
		Format:     j.Format,
		Quality:    j.Quality,
	}
}

//-------------------

// JobRequest is the value of a task message; the message key carries the job UID.
type JobRequest struct {
	SourceKey  string `json:"source_key"`
	Width      int    `json:"width"`
	Height     int    `json:"height,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Interest   string `json:"interest,omitempty"`
	Background string `json:"background,omitempty"`
	Format     string `json:"format,omitempty"`
	Quality    int    `json:"quality,omitempty"`
}

// ------------------

var (
	ErrCommon500           error = errors.New("something went wrong. Try again later")   // 500
	ErrIncorrectID         error = errors.New("incorrect job UUID")                      // 400
	ErrJobNotFound         error = errors.New("specified job UUID doesn't exist")        // 404
	ErrEmptySource         error = errors.New("empty source key provided")               // 400
	ErrObjectNotFound      error = errors.New("object doesn't exist in storage")         // 404
	ErrIncorrectSize       error = errors.New("incorrect thumbnail dimensions provided") // 400
	ErrIncorrectMode       error = errors.New("resize mode is not supported")            // 400
	ErrIncorrectInterest   error = errors.New("interest mode is not supported")          // 400
	ErrIncorrectBackground error = errors.New("incorrect background colour provided")    // 400
	ErrIncorrectQuality    error = errors.New("quality must be between 1 and 100")       // 400
	ErrIncorrectStatus     error = errors.New("incorrect status provided")               // 400
	ErrUnsupportedFormat   error = errors.New("unsupported image format")                // 400
	ErrIncorrectTask       error = errors.New("task message can't be decoded")           // 400
	ErrJobInProgress       error = errors.New("job is still being processed")            // 409
)

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("invalid type %T for StringSlice", value)
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal StringSlice to JSONB: %w", err)
	}

	return res, nil
}
