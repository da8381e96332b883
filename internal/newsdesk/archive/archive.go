// Package archive stores research results as JSON objects in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores one research result.
type Archiver interface {
	Put(ctx context.Context, taskID int64, at time.Time, result any) (string, error)
}

// Config configures the S3 archiver. An empty Bucket disables archiving.
type Config struct {
	Bucket       string `yaml:"bucket" toml:"bucket" env:"S3_BUCKET"`
	Prefix       string `yaml:"prefix" toml:"prefix" env:"S3_PREFIX"`
	Region       string `yaml:"region" toml:"region" env:"AWS_REGION"`
	Profile      string `yaml:"profile" toml:"profile" env:"AWS_PROFILE"`
	Endpoint     string `yaml:"endpoint" toml:"endpoint" env:"S3_ENDPOINT"`
	UsePathStyle bool   `yaml:"use_path_style" toml:"use_path_style" env:"S3_USE_PATH_STYLE"`
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 archives results to an S3 bucket.
type S3 struct {
	client putter
	bucket string
	prefix string
}

// NewS3 creates an S3 archiver from the default AWS credential chain.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3(client putter, bucket, prefix string) *S3 {
	if prefix == "" {
		prefix = "research"
	}
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a task archived at the given time.
func Key(prefix string, taskID int64, at time.Time) string {
	at = at.UTC()
	return path.Join(prefix, at.Format("2006"), at.Format("01"), at.Format("02"), fmt.Sprintf("task-%d.json", taskID))
}

// Put uploads result as JSON and returns the object key.
func (a *S3) Put(ctx context.Context, taskID int64, at time.Time, result any) (string, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	key := Key(a.prefix, taskID, at)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}

// Nop discards results.
type Nop struct{}

func (Nop) Put(context.Context, int64, time.Time, any) (string, error) { return "", nil }
