package gcp

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

// AudioBucket stages meeting recordings in GCS so long audio can be
// transcribed by URI.
type AudioBucket interface {
	UploadAudio(ctx context.Context, key string, r io.Reader) (string, error)
	DeleteAudio(ctx context.Context, key string) error
	Close() error
}

type audioBucket struct {
	log    *logger.Logger
	client *storage.Client
	name   string
	prefix string
}

func NewAudioBucket(ctx context.Context, log *logger.Logger, bucketName, prefix string) (AudioBucket, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, fmt.Errorf("missing env var MEETING_AUDIO_GCS_BUCKET")
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &audioBucket{
		log:    log.With("service", "AudioBucket"),
		client: c,
		name:   bucketName,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (b *audioBucket) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

// UploadAudio writes r under key and returns its gs:// URI.
func (b *audioBucket) UploadAudio(ctx context.Context, key string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	obj := b.objectKey(key)
	w := b.client.Bucket(b.name).Object(obj).NewWriter(ctx)
	w.ContentType = AudioContentType(obj)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write audio to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	uri := GCSURI(b.name, obj)
	b.log.Info("Audio staged", "uri", uri)
	return uri, nil
}

func (b *audioBucket) DeleteAudio(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	obj := b.objectKey(key)
	if err := b.client.Bucket(b.name).Object(obj).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", obj, b.name, err)
	}
	return nil
}

func (b *audioBucket) Close() error { return b.client.Close() }

func GCSURI(bucket, object string) string {
	return "gs://" + bucket + "/" + strings.TrimLeft(object, "/")
}

func AudioContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
