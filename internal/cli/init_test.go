package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/config"
)

func TestSetupLogger(t *testing.T) {
	logger, err := SetupLogger("debug", "json")
	require.NoError(t, err)
	assert.Equal(t, "app", logger.Component())

	_, err = SetupLogger("chatty", "text")
	assert.Error(t, err)
}

func TestLoadAndValidateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9999\"\naccount_delete_policy: orphan\n"), 0o600))

	cfg, err := LoadAndValidateConfig(config.NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "orphan", cfg.AccountDeletePolicy)

	require.NoError(t, os.WriteFile(path, []byte("port: \"0\"\n"), 0o600))
	_, err = LoadAndValidateConfig(config.NewViper(), path)
	assert.ErrorContains(t, err, "configuration validation failed")
}

func TestOpenStore(t *testing.T) {
	cfg := config.Load(config.NewViper())
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "ledger.db")

	store, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, cfg.DBPath, store.Path())
}

func TestConnectEvents_Disabled(t *testing.T) {
	cfg := config.Load(config.NewViper())
	assert.Nil(t, ConnectEvents(context.Background(), cfg))
}

func TestGracefulShutdown_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())

	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, time.Second, func(context.Context) { close(cleaned) })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.Error(t, ctx.Err())
	_, open := <-cleaned
	assert.False(t, open)
}
