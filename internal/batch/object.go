package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
)

// ObjectStore is the read side of a bucket.
type ObjectStore interface {
	// List returns every object key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Open streams one object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectSource reads result files from a bucket prefix.
// Batch labels are the object keys.
type ObjectSource struct {
	URI         string
	Store       ObjectStore
	Prefix      string
	Pattern     string
	Concurrency int
	Logger      *slog.Logger
}

// Name implements Source.
func (s *ObjectSource) Name() string {
	return s.URI
}

// Load implements Source.
func (s *ObjectSource) Load(ctx context.Context) (*Load, error) {
	logger := orDiscard(s.Logger)

	keys, err := s.Store.List(ctx, s.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.URI, err)
	}

	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	var selected []string
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		if matchFold(pattern, path.Base(key)) {
			selected = append(selected, key)
		}
	}
	sort.Strings(selected)

	logger.Debug("reading bucket prefix", slog.String("uri", s.URI), slog.Int("objects", len(selected)))

	return readAll(ctx, selected, s.Concurrency, func(ctx context.Context, key string) ([]byte, error) {
		rc, err := s.Store.Open(ctx, key)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(rc)
	}, logger)
}

// ObjectLocation is a parsed bucket URI.
type ObjectLocation struct {
	Scheme string // s3, gs or azblob
	Bucket string // bucket or container
	Prefix string
}

// ParseObjectURI splits s3://bucket/prefix, gs://bucket/prefix and
// azblob://container/prefix.
func ParseObjectURI(uri string) (ObjectLocation, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return ObjectLocation{}, fmt.Errorf("parse object uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "s3", "gs", "azblob":
	default:
		return ObjectLocation{}, fmt.Errorf("unsupported object store scheme %q in %q", u.Scheme, uri)
	}
	if u.Host == "" {
		return ObjectLocation{}, fmt.Errorf("empty bucket in %q", uri)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return ObjectLocation{Scheme: u.Scheme, Bucket: u.Host, Prefix: prefix}, nil
}
