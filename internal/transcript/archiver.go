package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
)

// Entry is one question/answer exchange as written to the archive.
type Entry struct {
	SessionID string    `json:"session_id"`
	ChatType  string    `json:"chat_type"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Archiver appends conversation transcripts to a cloud storage bucket.
// Objects are grouped by day so retention can be enforced per prefix.
type Archiver struct {
	client *storage.Client
	bucket *storage.BucketHandle
	logger *logger.Logger
}

// NewArchiver creates an archiver writing into the configured bucket.
func NewArchiver(ctx context.Context, cfg config.TranscriptConfig, log *logger.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("transcript bucket is not configured")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	log.Info("Transcript archiver initialized", zap.String("bucket", cfg.Bucket))

	return &Archiver{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		logger: log,
	}, nil
}

// Close releases the underlying storage client.
func (a *Archiver) Close() error {
	return a.client.Close()
}

// Append writes the entry as one JSON object under the day/session prefix.
// Object name: YYYY-MM-DD/<session>/<unix-nanos>.json
func (a *Archiver) Append(ctx context.Context, entry *Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	name := fmt.Sprintf("%s/%s/%d.json",
		entry.Timestamp.Format("2006-01-02"), entry.SessionID, entry.Timestamp.UnixNano())

	w := a.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if err := json.NewEncoder(w).Encode(entry); err != nil {
		w.Close()
		return fmt.Errorf("failed to encode transcript entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write transcript object: %w", err)
	}

	a.logger.Debug("Transcript entry archived",
		zap.String("object", name),
		zap.String("chat_type", entry.ChatType))

	return nil
}
