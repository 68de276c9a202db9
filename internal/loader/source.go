// Package loader fetches the encoded index from its configured source,
// builds the catalog and keeps it current as the source changes.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/postgres"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound is returned when the source holds no index yet.
var ErrNotFound = errors.New("index not found in source")

// Source yields the raw encoded index.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// Versioned sources report a cheap change token so a watcher can poll
// without transferring the blob.
type Versioned interface {
	Version(ctx context.Context) (string, error)
}

// FileSource reads the index from the local filesystem.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return data, nil
}

// WatchPath is the file fsnotify should follow.
func (s *FileSource) WatchPath() string {
	return filepath.Clean(s.Path)
}

// PostgresSource reads a named index row written by `docindex pack --publish`.
type PostgresSource struct {
	Client    *postgres.Client
	IndexName string
}

func (s *PostgresSource) Name() string { return "postgres:" + s.IndexName }

func (s *PostgresSource) Fetch(ctx context.Context) ([]byte, error) {
	idx, err := s.Client.GetIndex(ctx, s.IndexName)
	if errors.Is(err, postgres.ErrIndexNotFound) {
		return nil, fmt.Errorf("%s: %w", s.Name(), ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return idx.Blob, nil
}

func (s *PostgresSource) Version(ctx context.Context) (string, error) {
	checksum, updatedAt, err := s.Client.IndexVersion(ctx, s.IndexName)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(checksum, 16) + "@" + updatedAt.UTC().Format("20060102T150405.000000"), nil
}

// MinioSource reads the index object from S3-compatible storage.
type MinioSource struct {
	client *minio.Client
	bucket string
	key    string
}

func NewMinioSource(cfg config.MinioConfig, key string) (*MinioSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &MinioSource{client: client, bucket: cfg.Bucket, key: key}, nil
}

func (s *MinioSource) Name() string { return "minio:" + s.bucket + "/" + s.key }

func (s *MinioSource) Fetch(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", s.Name(), err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", s.Name(), ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", s.Name(), err)
	}
	return data, nil
}

func (s *MinioSource) Version(ctx context.Context) (string, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%s: %w", s.Name(), ErrNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", s.Name(), err)
	}
	return info.ETag, nil
}

// Put uploads an encoded index, replacing the current object.
func (s *MinioSource) Put(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("putting %s: %w", s.Name(), err)
	}
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// NewSource builds the source named by cfg.Source. pg is required for the
// postgres source only.
func NewSource(cfg config.LoaderConfig, pg *postgres.Client) (Source, error) {
	switch cfg.Source {
	case "", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file source needs loader.path: %w", apperrors.ErrInvalidInput)
		}
		return &FileSource{Path: cfg.Path}, nil
	case "postgres":
		if pg == nil {
			return nil, errors.New("postgres source configured without a postgres client")
		}
		return &PostgresSource{Client: pg, IndexName: cfg.IndexName}, nil
	case "minio":
		return NewMinioSource(cfg.Minio, cfg.IndexName)
	default:
		return nil, fmt.Errorf("unknown loader source %q: %w", cfg.Source, apperrors.ErrInvalidInput)
	}
}
