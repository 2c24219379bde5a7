//go:build integration

package docstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Runs against a JetStream-enabled server, e.g. `nats-server -js`.
func TestKVStore(t *testing.T) {
	url := os.Getenv("STOCKFLOW_NATS_URL")
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}
	bucket := fmt.Sprintf("stockflow-test-%d", time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, url+"/"+bucket)
	require.NoError(t, err)
	require.IsType(t, &KVStore{}, s)

	exerciseStore(t, s)
}
