package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/stockflow-editor/internal/config"
	"github.com/signalsfoundry/stockflow-editor/internal/docrpc"
	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/internal/observability"
	"github.com/signalsfoundry/stockflow-editor/internal/session"
)

// app holds what every subcommand shares.
type app struct {
	configPath string
	connect    string
	collection string

	cfg      config.Config
	log      logging.Logger
	shutdown observability.ShutdownFunc
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "stockflow",
		Short:         "stockflow - stock-and-flow diagram tool",
		Long:          brand.Sprint("stockflow") + " - render, search and manage stock-and-flow diagrams",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.ShutdownWithTimeout(context.Background(), a.shutdown, a.log)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&a.connect, "connect", "", "Store connect string (mem://, file://<dir>, nats://host:port/<bucket>, grpc://host:port)")
	flags.StringVarP(&a.collection, "collection", "c", "", "Collection to work on")

	root.AddCommand(
		renderCmd(a),
		searchCmd(a),
		collectionsCmd(a),
		deleteCmd(a),
		validateCmd(a),
		demoCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.connect != "" {
		cfg.Store.ConnectString = a.connect
	}
	if a.collection != "" {
		cfg.Store.Collection = a.collection
	}
	a.cfg = cfg
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	a.log = logging.New(lc)

	tc := cfg.TracingConfig()
	tc.Output = cmd.ErrOrStderr()
	a.shutdown, err = observability.InitTracing(cmd.Context(), tc, a.log)
	return err
}

// open starts a session backed by the configured store. The returned
// cleanup closes both.
func (a *app) open(ctx context.Context, opts ...session.Option) (*session.Editor, func(), error) {
	store, err := docrpc.Open(ctx, a.cfg.Store.ConnectString, docstore.WithLogger(a.log))
	if err != nil {
		return nil, nil, fmt.Errorf("open store %q: %w", a.cfg.Store.ConnectString, err)
	}
	opts = append([]session.Option{
		session.WithLogger(a.log),
		session.WithLayout(a.cfg.Layout),
		session.WithStore(store, a.cfg.Store.Collection),
	}, opts...)
	e := session.New(ctx, opts...)
	return e, func() {
		e.Close()
		if err := store.Close(); err != nil {
			a.log.Warn(ctx, "closing store", logging.Err(err))
		}
	}, nil
}

// load opens a session and loads the named collection, or the configured
// one when args is empty.
func (a *app) load(ctx context.Context, args []string) (*session.Editor, func(), error) {
	e, done, err := a.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	collection := ""
	if len(args) > 0 {
		collection = args[0]
	}
	if err := e.Load(ctx, collection); err != nil {
		done()
		return nil, nil, err
	}
	return e, done, nil
}
