// Package iopkg opens and creates run artifacts on the local filesystem or
// in S3-compatible object storage.
package iopkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrUnsupportedScheme is returned for URIs other than file://, s3:// and "-".
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// s3iface is the subset of the s3 client we use; allows test fakes.
type s3iface interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// newS3Client constructs an s3 client; overridden in tests.
// Env support: AWS_REGION, AWS_ENDPOINT_URL_S3, AWS_S3_FORCE_PATH_STYLE.
var newS3Client = func(ctx context.Context) (s3iface, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("AWS_ENDPOINT_URL_S3"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		if strings.EqualFold(os.Getenv("AWS_S3_FORCE_PATH_STYLE"), "true") {
			o.UsePathStyle = true
		}
	}), nil
}

func parseS3(u *url.URL) (bucket, key string, err error) {
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q", u.String())
	}
	return bucket, key, nil
}

// Open returns a reader for a file:// (or bare path) or s3:// URI.
func Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if strings.HasPrefix(uri, "file://") || !strings.Contains(uri, "://") {
		return os.Open(strings.TrimPrefix(uri, "file://"))
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	bkt, key, err := parseS3(u)
	if err != nil {
		return nil, err
	}
	cl, err := newS3Client(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := cl.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bkt), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}
	return resp.Body, nil
}

// Create creates a local file, making parent directories as needed.
func Create(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// CreateWriter supports "-" (stdout), file:// or a bare path, and s3://.
// S3 objects are buffered and uploaded on Close.
func CreateWriter(ctx context.Context, uri string) (io.WriteCloser, error) {
	if uri == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if strings.HasPrefix(uri, "file://") || !strings.Contains(uri, "://") {
		return Create(strings.TrimPrefix(uri, "file://"))
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("%w for CreateWriter: %s", ErrUnsupportedScheme, u.Scheme)
	}
	bkt, key, err := parseS3(u)
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, bucket: bkt, key: key}, nil
}

type s3Writer struct {
	ctx    context.Context
	bucket string
	key    string
	buf    bytes.Buffer
	done   bool
}

func (w *s3Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *s3Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	cl, err := newS3Client(w.ctx)
	if err != nil {
		return err
	}
	_, err = manager.NewUploader(cl).Upload(w.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(w.buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", w.bucket, w.key, err)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
