// Package storage writes run artifacts to local files or S3 objects.
package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	mrterrors "github.com/mrtbatch/mrtbatch/pkg/errors"
)

// Schemes accepted by ParseDestination.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
)

// Destination is a parsed artifact location.
type Destination struct {
	Scheme string
	// Path is the local path for SchemeFile.
	Path string
	// Bucket and Key locate an S3 object.
	Bucket string
	Key    string
}

// ParseDestination accepts a local path, a file:// URL or s3://bucket/key.
// A one-letter scheme is a Windows drive, not a URL.
func ParseDestination(dest string) (Destination, error) {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return Destination{Scheme: SchemeFile, Path: dest}, nil
	}

	switch strings.ToLower(u.Scheme) {
	case SchemeFile:
		return Destination{Scheme: SchemeFile, Path: u.Path}, nil
	case SchemeS3:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Destination{}, mrterrors.Newf(mrterrors.CodeInvalidArgument,
				"invalid S3 location %q, expected s3://bucket/key", dest)
		}
		return Destination{Scheme: SchemeS3, Bucket: u.Host, Key: key}, nil
	default:
		return Destination{}, mrterrors.Newf(mrterrors.CodeInvalidArgument,
			"unsupported storage scheme: %s", u.Scheme)
	}
}

// IsRemote reports whether d is an object store location.
func (d Destination) IsRemote() bool {
	return d.Scheme != SchemeFile
}

func (d Destination) String() string {
	if d.Scheme == SchemeS3 {
		return "s3://" + d.Bucket + "/" + d.Key
	}
	return d.Path
}

// ObjectStore uploads whole objects.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Writer stores artifacts. The object store is created on first use so
// local-only runs never load cloud credentials.
type Writer struct {
	objects   ObjectStore
	newObject func(ctx context.Context) (ObjectStore, error)
}

// NewWriter creates a writer using an S3 client built from cfg.
func NewWriter(cfg S3Config) *Writer {
	return &Writer{
		newObject: func(ctx context.Context) (ObjectStore, error) {
			return NewS3Client(ctx, cfg)
		},
	}
}

// NewWriterWithStore creates a writer backed by an existing object store.
func NewWriterWithStore(store ObjectStore) *Writer {
	return &Writer{objects: store}
}

// Write stores data at dest, creating local parent directories as needed.
func (w *Writer) Write(ctx context.Context, dest string, data []byte, contentType string) error {
	d, err := ParseDestination(dest)
	if err != nil {
		return err
	}

	if !d.IsRemote() {
		if dir := filepath.Dir(d.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return mrterrors.Wrapf(err, mrterrors.CodeCreateDir, "could not create directory: %s", dir)
			}
		}
		if err := os.WriteFile(d.Path, data, 0644); err != nil {
			return mrterrors.WriteFailed(d.Path, err)
		}
		return nil
	}

	if w.objects == nil {
		if w.newObject == nil {
			return mrterrors.Newf(mrterrors.CodeInvalidConfig, "no object store configured for %s", d)
		}
		store, err := w.newObject(ctx)
		if err != nil {
			return mrterrors.Wrap(err, mrterrors.CodeInvalidConfig, "could not configure S3 client")
		}
		w.objects = store
	}

	if err := w.objects.Put(ctx, d.Bucket, d.Key, data, contentType); err != nil {
		return mrterrors.WriteFailed(d.String(), err)
	}
	return nil
}
