package reclamation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3 archive.
type S3Config struct {
	// Bucket is the name of the S3 bucket.
	Bucket string

	// Prefix is prepended to every object key, e.g. "archives/".
	Prefix string

	// Region is the AWS region. Defaults to "us-east-1".
	Region string

	// Endpoint overrides the S3 endpoint, e.g. "http://localhost:9000" for
	// MinIO.
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (MinIO and most
	// S3-compatible stores need it).
	UsePathStyle bool
}

// PutObjectAPI is the part of the S3 client the archive uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes each archived batch as one JSON-lines object.
//
// Keys look like "<prefix>2025-01-15/<run id>-<seq>.jsonl", so one day's
// archive can be listed with a single prefix.
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	seq    atomic.Uint64
}

// NewS3Archiver loads AWS configuration and returns an archiver for
// cfg.Bucket.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 archive: bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 archive: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3ArchiverWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiverWithClient returns an archiver using client.
func NewS3ArchiverWithClient(client PutObjectAPI, bucket, prefix string) *S3Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a batch of run runID written at now.
func (a *S3Archiver) Key(runID string, now time.Time, seq uint64) string {
	return fmt.Sprintf("%s%s/%s-%04d.jsonl", a.prefix, now.UTC().Format("2006-01-02"), runID, seq)
}

// Write uploads entries as one object and returns its key.
func (a *S3Archiver) Write(ctx context.Context, entries []ArchiveEntry, now time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return "", fmt.Errorf("failed to encode archive entry for report %s: %w", e.Report.ID, err)
		}
	}

	key := a.Key(entries[0].RunID, now, a.seq.Add(1))
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/x-ndjson"),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 archive: put %s: %w", key, err)
	}
	return key, nil
}
