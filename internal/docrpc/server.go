package docrpc

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/internal/observability"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// Configuration is what GetConfiguration reports to editors.
type Configuration struct {
	DefaultCollection    string `json:"defaultCollectionName"`
	DefaultConnectString string `json:"defaultConnectString"`
	WikiHost             string `json:"wikiHostname"`
}

// Opener opens the store named by a connect string carried in a request.
type Opener func(ctx context.Context, connectString string) (docstore.Store, error)

// Server implements DocumentStoreServer on top of a docstore.Store.
type Server struct {
	store   docstore.Store
	info    Configuration
	opener  Opener
	log     logging.Logger
	metrics *observability.RPCCollector
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the fallback logger for requests that carry none.
func WithLogger(l logging.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOpener lets requests name a connect string other than the server's
// own; each such request opens and closes its own store.
func WithOpener(o Opener) ServerOption {
	return func(s *Server) { s.opener = o }
}

// WithMetrics records store gauges on c.
func WithMetrics(c *observability.RPCCollector) ServerOption {
	return func(s *Server) { s.metrics = c }
}

// NewServer serves store, which answers requests without a connect string
// or with info.DefaultConnectString.
func NewServer(store docstore.Store, info Configuration, opts ...ServerOption) *Server {
	s := &Server{store: store, info: info, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGRPCServer builds a grpc.Server carrying the request id, tracing and
// metrics interceptors with srv registered on it.
func NewGRPCServer(srv *Server, log logging.Logger, collector *observability.RPCCollector, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterDocumentStoreServer(gs, srv)
	return gs
}

func (s *Server) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

// withStore runs fn against the store the request names.
func (s *Server) withStore(ctx context.Context, req *structpb.Struct, fn func(docstore.Store) error) error {
	cs := stringField(req, fieldConnectString)
	if cs == "" || cs == s.info.DefaultConnectString {
		if s.store == nil {
			return ErrForeignStore
		}
		return fn(s.store)
	}
	if s.opener == nil {
		return ErrForeignStore
	}
	st, err := s.opener(ctx, cs)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func (s *Server) fail(ctx context.Context, key, prefix string, err error) error {
	s.logger(ctx).Warn(ctx, prefix, logging.Err(err))
	return failureStatus(key, prefix, err)
}

func (s *Server) GetConfiguration(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	val, err := toValue(s.info)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return val.GetStructValue(), nil
}

func (s *Server) GetExistingCollections(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const prefix = "Failed to retrieve existing collections"
	ctx, span := startSpan(ctx, "docstore.Collections", "")
	defer span.End()

	var names []string
	err := s.withStore(ctx, req, func(st docstore.Store) error {
		var err error
		names, err = st.Collections(ctx)
		if err == nil && st == s.store {
			s.metrics.SetCollections(len(names))
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.fail(ctx, keyCollections, prefix, err)
	}
	infos := make([]collectionInfo, len(names))
	for i, n := range names {
		infos[i] = collectionInfo{Name: n}
	}
	return envelope(keyCollections, infos)
}

func (s *Server) GetData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const prefix = "Failed to retrieve objects"
	collection, err := requireString(req, fieldCollection)
	if err != nil {
		return nil, s.fail(ctx, keyObjects, prefix, err)
	}
	ctx, span := startSpan(ctx, "docstore.Load", collection)
	defer span.End()

	var views []model.View
	err = s.withStore(ctx, req, func(st docstore.Store) error {
		var err error
		views, err = st.Load(ctx, collection)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.fail(ctx, keyObjects, prefix, err)
	}
	s.logger(ctx).Debug(ctx, "collection loaded", logging.String("collection", collection), logging.Int("views", len(views)))
	return envelope(keyObjects, views)
}

func (s *Server) SendData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const prefix = "Failed to send data"
	collection, err := requireString(req, fieldCollection)
	if err != nil {
		return nil, s.fail(ctx, keyWriteOpResult, prefix, err)
	}
	var views []model.View
	if data, ok := req.GetFields()[fieldData]; ok {
		if err := fromValue(data, &views); err != nil {
			return nil, s.fail(ctx, keyWriteOpResult, prefix, fmt.Errorf("decode data: %v: %w", err, ErrInvalidRequest))
		}
	}
	ctx, span := startSpan(ctx, "docstore.Save", collection)
	defer span.End()

	var res docstore.WriteResult
	err = s.withStore(ctx, req, func(st docstore.Store) error {
		var err error
		res, err = st.Save(ctx, collection, views)
		if err == nil && st == s.store {
			s.metrics.SetStoredViews(collection, len(views))
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.fail(ctx, keyWriteOpResult, prefix, err)
	}
	s.logger(ctx).Info(ctx, "collection saved", logging.String("collection", collection), logging.Int("views", res.N))
	return envelope(keyWriteOpResult, res)
}

func (s *Server) DeleteData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const prefix = "Failed to delete data"
	collection, err := requireString(req, fieldCollection)
	if err != nil {
		return nil, s.fail(ctx, keyResult, prefix, err)
	}
	ctx, span := startSpan(ctx, "docstore.Delete", collection)
	defer span.End()

	err = s.withStore(ctx, req, func(st docstore.Store) error {
		err := st.Delete(ctx, collection)
		if err == nil && st == s.store {
			s.metrics.SetStoredViews(collection, 0)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.fail(ctx, keyResult, prefix, err)
	}
	s.logger(ctx).Info(ctx, "collection deleted", logging.String("collection", collection))
	return envelope(keyResult, docstore.WriteResult{OK: 1})
}
