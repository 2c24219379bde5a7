package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// DefaultBucket is used when a nats:// connect string names no bucket.
const DefaultBucket = "stemio-db"

var validKey = regexp.MustCompile(`^[-/_=a-zA-Z0-9]+(\.[-/_=a-zA-Z0-9]+)*$`)

// KVStore keeps each collection as one key of a JetStream key/value bucket.
type KVStore struct {
	nc      *nats.Conn
	kv      jetstream.KeyValue
	log     logging.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// DialKV connects to the NATS server at url and binds bucket, creating it
// on first use.
func DialKV(ctx context.Context, url, bucket string, opts ...Option) (*KVStore, error) {
	o := buildOptions(opts)
	if bucket == "" {
		bucket = DefaultBucket
	}
	log := o.log.With(logging.String("store", "nats"), logging.String("bucket", bucket))

	nc, err := nats.Connect(url,
		nats.Name("stockflow-docstore"),
		nats.Timeout(o.timeout),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := bindBucket(ctx, js, bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	log.Info(ctx, "document store connected", logging.String("url", url))
	return &KVStore{nc: nc, kv: kv, log: log, timeout: o.timeout}, nil
}

// NewKVStore wraps an already bound bucket. Close leaves the connection
// open.
func NewKVStore(kv jetstream.KeyValue, opts ...Option) *KVStore {
	o := buildOptions(opts)
	return &KVStore{kv: kv, log: o.log.With(logging.String("store", "nats")), timeout: o.timeout}
}

func bindBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("bind bucket %s: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "stockflow diagram collections",
		History:     5,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		// Lost a creation race with another client.
		kv, err = js.KeyValue(ctx, bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func (s *KVStore) begin(ctx context.Context, collection string) (context.Context, context.CancelFunc, error) {
	if collection != "" {
		if err := CheckName(collection); err != nil {
			return nil, nil, err
		}
		if !validKey.MatchString(collection) {
			return nil, nil, fmt.Errorf("%q is not a valid bucket key: %w", collection, ErrInvalidName)
		}
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}
	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

func (s *KVStore) Collections(ctx context.Context) ([]string, error) {
	ctx, cancel, err := s.begin(ctx, "")
	if err != nil {
		return nil, err
	}
	defer cancel()
	keys, err := s.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(keys)
	return visible(keys), nil
}

func (s *KVStore) Load(ctx context.Context, collection string) ([]model.View, error) {
	ctx, cancel, err := s.begin(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer cancel()
	entry, err := s.kv.Get(ctx, collection)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, fmt.Errorf("%q: %w", collection, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", collection, err)
	}
	return Decode(entry.Value())
}

func (s *KVStore) Save(ctx context.Context, collection string, views []model.View) (WriteResult, error) {
	ctx, cancel, err := s.begin(ctx, collection)
	if err != nil {
		return WriteResult{}, err
	}
	defer cancel()
	data, err := Encode(views)
	if err != nil {
		return WriteResult{}, err
	}
	rev, err := s.kv.Put(ctx, collection, data)
	if err != nil {
		return WriteResult{}, fmt.Errorf("save %q: %w", collection, err)
	}
	s.log.Debug(ctx, "collection saved",
		logging.String("collection", collection),
		logging.Int("views", len(views)),
		logging.Any("revision", rev),
	)
	return WriteResult{OK: 1, N: len(views)}, nil
}

func (s *KVStore) Delete(ctx context.Context, collection string) error {
	ctx, cancel, err := s.begin(ctx, collection)
	if err != nil {
		return err
	}
	defer cancel()
	if _, err := s.kv.Get(ctx, collection); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("%q: %w", collection, ErrNotFound)
		}
		return fmt.Errorf("delete %q: %w", collection, err)
	}
	// Purge drops the history too, so a deleted collection stays gone.
	if err := s.kv.Purge(ctx, collection); err != nil {
		return fmt.Errorf("delete %q: %w", collection, err)
	}
	return nil
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.nc != nil {
		return s.nc.Drain()
	}
	return nil
}
