package docrpc

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// Client talks to a document store server. It implements docstore.Store.
type Client struct {
	conn          *grpc.ClientConn
	connectString string
	owned         bool
}

var _ docstore.Store = (*Client)(nil)

// Dial connects to the server at target. connectString, when set, is sent
// with every request to select the server-side backend.
func Dial(target, connectString string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(RequestIDUnaryClientInterceptor()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn, connectString: connectString, owned: true}, nil
}

// NewClient wraps an existing connection. Close leaves conn open.
func NewClient(conn *grpc.ClientConn, connectString string) *Client {
	return &Client{conn: conn, connectString: connectString}
}

// Open extends docstore.Open with grpc://host:port, optionally carrying the
// server-side connect string as ?connect=<connect string>.
func Open(ctx context.Context, connectString string, opts ...docstore.Option) (docstore.Store, error) {
	if !strings.HasPrefix(strings.ToLower(connectString), "grpc://") {
		return docstore.Open(ctx, connectString, opts...)
	}
	u, err := url.Parse(connectString)
	if err != nil {
		return nil, fmt.Errorf("parse connect string %q: %w", connectString, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%q: missing host: %w", connectString, docstore.ErrUnsupportedScheme)
	}
	return Dial(u.Host, u.Query().Get("connect"))
}

func (c *Client) call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	if c.connectString != "" {
		in.Fields[fieldConnectString] = structpb.NewStringValue(c.connectString)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, fromStatusError(err)
	}
	return out, nil
}

// Configuration fetches the server's editor defaults.
func (c *Client) Configuration(ctx context.Context) (Configuration, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod("GetConfiguration"), &emptypb.Empty{}, out); err != nil {
		return Configuration{}, fromStatusError(err)
	}
	var cfg Configuration
	if err := fromValue(structpb.NewStructValue(out), &cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func (c *Client) Collections(ctx context.Context) ([]string, error) {
	out, err := c.call(ctx, "GetExistingCollections", &structpb.Struct{Fields: map[string]*structpb.Value{}})
	if err != nil {
		return nil, err
	}
	var infos []collectionInfo
	if err := payload(out, keyCollections, &infos); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Name != docstore.ReservedCollection {
			names = append(names, info.Name)
		}
	}
	return names, nil
}

func (c *Client) Load(ctx context.Context, collection string) ([]model.View, error) {
	if err := docstore.CheckName(collection); err != nil {
		return nil, err
	}
	in, err := request(map[string]any{fieldCollection: collection})
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, "GetData", in)
	if err != nil {
		return nil, err
	}
	views := []model.View{}
	if err := payload(out, keyObjects, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *Client) Save(ctx context.Context, collection string, views []model.View) (docstore.WriteResult, error) {
	if err := docstore.CheckName(collection); err != nil {
		return docstore.WriteResult{}, err
	}
	if views == nil {
		views = []model.View{}
	}
	in, err := request(map[string]any{fieldCollection: collection, fieldData: views})
	if err != nil {
		return docstore.WriteResult{}, err
	}
	out, err := c.call(ctx, "SendData", in)
	if err != nil {
		return docstore.WriteResult{}, err
	}
	var res docstore.WriteResult
	if err := payload(out, keyWriteOpResult, &res); err != nil {
		return docstore.WriteResult{}, err
	}
	return res, nil
}

func (c *Client) Delete(ctx context.Context, collection string) error {
	if err := docstore.CheckName(collection); err != nil {
		return err
	}
	in, err := request(map[string]any{fieldCollection: collection})
	if err != nil {
		return err
	}
	out, err := c.call(ctx, "DeleteData", in)
	if err != nil {
		return err
	}
	return payload(out, keyResult, nil)
}

func (c *Client) Close() error {
	if c.owned {
		return c.conn.Close()
	}
	return nil
}
