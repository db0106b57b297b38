package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/UnendingLoop/ImageThumbnailer/internal/model"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// EncodeTask builds the key/value pair of a task message: the job UID as key, the request as JSON value.
func EncodeTask(id uuid.UUID, req model.JobRequest) (key, value []byte, err error) {
	value, err = json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal task %q: %w", id, err)
	}
	return []byte(id.String()), value, nil
}

// DecodeTask is the inverse of EncodeTask. Any malformed message wraps model.ErrIncorrectTask.
func DecodeTask(msg kafkago.Message) (uuid.UUID, model.JobRequest, error) {
	var req model.JobRequest

	id, err := uuid.ParseBytes(msg.Key)
	if err != nil {
		return uuid.Nil, req, fmt.Errorf("%w: key %q: %v", model.ErrIncorrectTask, msg.Key, err)
	}
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return id, req, fmt.Errorf("%w: value of %q: %v", model.ErrIncorrectTask, id, err)
	}
	return id, req, nil
}
