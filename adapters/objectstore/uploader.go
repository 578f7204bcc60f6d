// Package objectstore uploads checkpoint directories to S3-compatible object storage.
package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"intenttune/internal"
	"intenttune/internal/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of the S3 client the uploader needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the bucket
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// Uploader implements ports.ArtifactUploader
type Uploader struct {
	client PutObjectAPI
	bucket string
	logger *internal.Logger
}

// NewClient builds an S3 client from the default AWS credential chain. A
// custom endpoint switches to path-style addressing for MinIO.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, errors.ExternalServiceError("s3", fmt.Errorf("failed to load AWS config: %w", err))
	}

	opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, opts...), nil
}

// NewUploader creates an uploader writing to bucket
func NewUploader(client PutObjectAPI, bucket string, logger *internal.Logger) *Uploader {
	return &Uploader{client: client, bucket: bucket, logger: logger.With("Artifacts")}
}

// UploadDir puts every regular file under dir at prefix/<dir name>/<relative path>
// and returns the number of objects written
func (u *Uploader) UploadDir(ctx context.Context, dir, prefix string) (int, error) {
	base := filepath.Base(filepath.Clean(dir))
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(strings.Trim(prefix, "/"), base, filepath.ToSlash(rel))
		if err := u.put(ctx, p, key); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, errors.ExternalServiceError("s3", err)
	}
	u.logger.Info("uploaded %d files from %s to s3://%s/%s", count, dir, u.bucket, path.Join(strings.Trim(prefix, "/"), base))
	return count, nil
}

func (u *Uploader) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(file)),
		Metadata: map[string]string{
			"source": "intenttune",
		},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func contentType(file string) string {
	switch {
	case strings.HasSuffix(file, ".json"):
		return "application/json"
	case strings.HasSuffix(file, ".zst"):
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}
