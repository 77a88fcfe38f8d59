package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver stores snapshots and returns where each one went.
type Archiver interface {
	Save(ctx context.Context, s *Snapshot) (string, error)
}

// Info describes an archived snapshot.
type Info struct {
	Key          string    `json:"key" yaml:"key"`
	Zone         string    `json:"zone" yaml:"zone"`
	Size         int64     `json:"size" yaml:"size"`
	LastModified time.Time `json:"last_modified" yaml:"last_modified"`
}

// DirArchive writes snapshots as files in a local directory.
type DirArchive struct {
	Dir    string
	Format string
}

// Save writes s under Dir, creating the directory if needed.
func (a DirArchive) Save(_ context.Context, s *Snapshot) (string, error) {
	data, err := Encode(s, a.Format)
	if err != nil {
		return "", err
	}
	dir := a.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}
	target := filepath.Join(dir, FileName(s, a.Format))
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return target, nil
}

// MinioConfig contains the object storage settings for snapshots.
type MinioConfig struct {
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UseSSL           bool
	Prefix           string
	Format           string
	HTTPTimeout      time.Duration
	AutoCreateBucket bool
}

// Validate reports missing settings.
func (c MinioConfig) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.AccessKey == "" {
		missing = append(missing, "access key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("minio snapshot storage is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// MinioArchive stores snapshots in a MinIO or S3-compatible bucket under
// <prefix>/zone-snapshots/.
type MinioArchive struct {
	cfg    MinioConfig
	client *minio.Client
	log    logr.Logger
	ready  bool
}

// NewMinioArchive builds the client; the bucket is checked on first use.
func NewMinioArchive(cfg MinioConfig, log logr.Logger) (*MinioArchive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tr := &http.Transport{
		IdleConnTimeout:     5 * time.Minute,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
	}
	if cfg.HTTPTimeout > 0 {
		tr.ResponseHeaderTimeout = cfg.HTTPTimeout
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: tr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Minio client: %w", err)
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &MinioArchive{cfg: cfg, client: client, log: log}, nil
}

func (a *MinioArchive) ensureBucket(ctx context.Context) error {
	if a.ready {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if !a.cfg.AutoCreateBucket {
			return fmt.Errorf("bucket %s does not exist", a.cfg.Bucket)
		}
		a.log.Info("creating snapshot bucket", "bucket", a.cfg.Bucket)
		if err := a.client.MakeBucket(ctx, a.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.cfg.Bucket, err)
		}
	}
	a.ready = true
	return nil
}

func (a *MinioArchive) keyPrefix() string {
	return path.Join(strings.Trim(a.cfg.Prefix, "/"), "zone-snapshots") + "/"
}

// ObjectKey is where s is stored.
func (a *MinioArchive) ObjectKey(s *Snapshot) string {
	return a.keyPrefix() + FileName(s, a.cfg.Format)
}

// Save uploads s and returns its object key.
func (a *MinioArchive) Save(ctx context.Context, s *Snapshot) (string, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}
	data, err := Encode(s, a.cfg.Format)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	key := a.ObjectKey(s)
	contentType := "application/json"
	if FormatFromPath(key) == "yaml" {
		contentType = "application/yaml"
	}
	if _, err := a.client.PutObject(ctx, a.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("failed to upload to Minio: %w", err)
	}
	a.log.Info("snapshot uploaded", "bucket", a.cfg.Bucket, "key", key, "bytes", len(data))
	return key, nil
}

// List returns archived snapshots of zone, newest first. An empty zone
// lists every snapshot.
func (a *MinioArchive) List(ctx context.Context, zone string, limit int) ([]Info, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	prefix := a.keyPrefix()
	if zone != "" {
		prefix += zone + "-"
	}
	var out []Info
	for obj := range a.client.ListObjects(ctx, a.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", obj.Err)
		}
		name := ZoneFromName(obj.Key)
		if zone != "" && name != zone {
			continue
		}
		out = append(out, Info{Key: obj.Key, Zone: name, Size: obj.Size, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Download fetches and decodes one archived snapshot.
func (a *MinioArchive) Download(ctx context.Context, key string) (*Snapshot, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("object key is required")
	}
	object, err := a.client.GetObject(ctx, a.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download from Minio: %w", err)
	}
	defer object.Close()
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read object content: %w", err)
	}
	return Decode(data, FormatFromPath(key))
}
