package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kakeibo/internal/amqp"
	"kakeibo/internal/config"
	"kakeibo/internal/core"
	"kakeibo/internal/services"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "memory", SeedDir: "seeds"})
	require.NoError(t, err)
	require.Equal(t, MemoryBackend, cfg.Type)
	require.Equal(t, "seeds", cfg.SeedDir)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.ErrorContains(t, err, "invalid backend type")
}

func TestConfigValidate(t *testing.T) {
	require.Error(t, Config{Type: SQLiteBackend}.Validate())
	require.Error(t, Config{Type: MemoryBackend, AMQPURL: "amqp://localhost/"}.Validate())
	require.NoError(t, Config{Type: MemoryBackend}.Validate())
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedDir: t.TempDir()})
	require.NoError(t, err)
	require.Nil(t, res.Publisher)
	require.Nil(t, res.Ping)

	svc := services.NewLedgerService(res.Ledger, res.Publisher, nil)
	accounts, err := svc.ListAccounts(context.Background(), core.NewIdentity("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, accounts)
}

func TestCreateSQLiteBackendWithoutBroker(t *testing.T) {
	f := NewFactory(nil)
	f.dialAMQP = func(string, string, string) (*amqp.Client, error) {
		return nil, errors.New("connection refused")
	}

	res, err := f.CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "kakeibo.db"),
		AMQPURL:      "amqp://localhost:5672/",
		AMQPExchange: "kakeibo",
		AMQPQueue:    "entry_mirror",
	})
	require.NoError(t, err)
	// A failed dial leaves a nil interface, not a typed nil.
	require.True(t, res.Publisher == nil)
	require.NotNil(t, res.Ping)
	require.NoError(t, res.Ping(context.Background()))

	svc := services.NewLedgerService(res.Ledger, res.Publisher, nil)
	t.Cleanup(func() { _ = svc.Close() })

	cats, err := svc.ListCategories(context.Background(), core.NewIdentity("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, cats)
}
