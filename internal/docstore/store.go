// Package docstore persists diagram documents. A document is the JSON array
// of views produced by kb.PrepareDocument, stored under a collection name.
// Saving replaces the whole collection.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// ReservedCollection is never listed, loaded, saved or deleted.
const ReservedCollection = "system.indexes"

var (
	// ErrReserved is returned for operations on ReservedCollection.
	ErrReserved = errors.New("collection is reserved")
	// ErrNotFound is returned when loading or deleting a missing collection.
	ErrNotFound = errors.New("collection not found")
	// ErrInvalidName rejects empty names and names the backend cannot key.
	ErrInvalidName = errors.New("invalid collection name")
	// ErrUnsupportedScheme is returned by Open for unknown connect strings.
	ErrUnsupportedScheme = errors.New("unsupported connect string scheme")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Store is a collection-keyed document store.
type Store interface {
	// Collections lists collection names in lexical order.
	Collections(ctx context.Context) ([]string, error)
	// Load returns the views saved under collection.
	Load(ctx context.Context, collection string) ([]model.View, error)
	// Save replaces collection with views, creating it when missing.
	Save(ctx context.Context, collection string, views []model.View) (WriteResult, error)
	// Delete drops collection.
	Delete(ctx context.Context, collection string) error
	Close() error
}

// WriteResult reports a completed save in the shape document databases
// answer bulk inserts with.
type WriteResult struct {
	OK int `json:"ok"`
	N  int `json:"n"`
}

type options struct {
	log     logging.Logger
	timeout time.Duration
}

// Option configures a Store opened by Open.
type Option func(*options)

// WithLogger sets the logger used by the backend.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTimeout bounds each backend round trip. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func buildOptions(opts []Option) options {
	o := options{log: logging.Noop(), timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open connects to the backend named by connectString:
//
//	mem://                   process-local MemoryStore
//	file:///var/lib/stemio   FileStore rooted at the path
//	nats://host:4222/bucket  KVStore on a JetStream key/value bucket
func Open(ctx context.Context, connectString string, opts ...Option) (Store, error) {
	u, err := url.Parse(connectString)
	if err != nil {
		return nil, fmt.Errorf("parse connect string %q: %w", connectString, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mem", "memory":
		return NewMemoryStore(), nil
	case "file":
		dir := u.Path
		if u.Host != "" {
			// file://relative/dir
			dir = u.Host + u.Path
		}
		return NewFileStore(dir, opts...)
	case "nats", "tls":
		bucket := strings.Trim(u.Path, "/")
		server := *u
		server.Path = ""
		return DialKV(ctx, server.String(), bucket, opts...)
	default:
		return nil, fmt.Errorf("%q: %w", connectString, ErrUnsupportedScheme)
	}
}

// CheckName validates a collection name for any backend.
func CheckName(collection string) error {
	if collection == ReservedCollection {
		return fmt.Errorf("%q: %w", collection, ErrReserved)
	}
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	return nil
}

func visible(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if n != ReservedCollection {
			out = append(out, n)
		}
	}
	return out
}

// Encode renders views as a persisted document.
func Encode(views []model.View) ([]byte, error) {
	if views == nil {
		views = []model.View{}
	}
	data, err := json.Marshal(views)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Decode parses a persisted document.
func Decode(data []byte) ([]model.View, error) {
	var views []model.View
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if views == nil {
		views = []model.View{}
	}
	return views, nil
}
