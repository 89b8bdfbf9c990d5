package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	require.Equal(t, "confirmed", cfg.Solana.Commitment)
	require.Equal(t, "https://api.jup.ag/price/v2", cfg.Rates.Endpoint)
	require.Equal(t, 30*time.Second, cfg.Rates.RefreshInterval)
	require.Empty(t, cfg.Database.DSN)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
solana:
  rpc_url: https://api.devnet.solana.com
tips:
  admin_wallets:
    - fileAdmin
  tip_jar_limit: 500
`), 0o600))

	t.Setenv("TIPPIT_PORT", "9999")
	t.Setenv("ADMIN_WALLETS", "envAdminA, envAdminB ,")
	t.Setenv("SOLANA_COMMITMENT", "finalized")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env wins over file, file wins over defaults.
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, "https://api.devnet.solana.com", cfg.Solana.RPCURL)
	require.Equal(t, "finalized", cfg.Solana.Commitment)
	require.Equal(t, []string{"envAdminA", "envAdminB"}, cfg.Tips.AdminWallets)
	require.Equal(t, 500.0, cfg.Tips.TipJarLimit)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	t.Setenv("TIPPIT_PORT", "-1")

	_, err := Load("")
	require.Error(t, err)
}
