package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/signalsfoundry/stockflow-editor/internal/config"
	"github.com/signalsfoundry/stockflow-editor/internal/docrpc"
	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/model"
)

func TestDocstoreServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := config.Default()
	cfg.Store.ConnectString = "mem://"
	cfg.Server.MetricsAddr = ""
	cfg.Logging = config.LoggingConfig{Level: "warn", Format: "text"}

	log := logging.New(cfg.LoggerConfig())

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	client, err := docrpc.Dial(lis.Addr().String(), "")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	info, err := client.Configuration(ctx)
	if err != nil {
		t.Fatalf("Configuration: %v", err)
	}
	if info.DefaultCollection != "objects" || info.DefaultConnectString != "mem://" {
		t.Fatalf("Configuration = %+v, want objects on mem://", info)
	}

	doc := []model.View{{ID: "v0", Text: "Population", Nodes: []model.Node{{ID: "b0", Text: "Population", Type: model.NodeSquare}}}}
	if _, err := client.Save(ctx, "objects", doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := client.Load(ctx, "objects")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].Nodes[0].Text != "Population" {
		t.Fatalf("Load = %+v, want the saved view", got)
	}
	if _, err := client.Load(ctx, "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Load(missing) err = %v, want ErrNotFound", err)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestRunFailsOnUnknownScheme(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()

	cfg := config.Default()
	cfg.Store.ConnectString = "mongodb://localhost:27017/stemio-db"
	cfg.Server.MetricsAddr = ""

	err = run(context.Background(), cfg, logging.Noop(), lis)
	if !errors.Is(err, docstore.ErrUnsupportedScheme) {
		t.Fatalf("run err = %v, want ErrUnsupportedScheme", err)
	}
}
