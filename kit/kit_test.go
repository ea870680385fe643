package kit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/waddrmgr"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	return Config{
		Name:        "bitcoin-wallet",
		NetParams:   &chaincfg.RegressionNetParams,
		DataDir:     t.TempDir(),
		PublicPass:  []byte("public"),
		PrivatePass: []byte("private"),
		MinConf:     DefaultMinConf,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no name", func(c *Config) { c.Name = "" }},
		{"no params", func(c *Config) { c.NetParams = nil }},
		{"no datadir", func(c *Config) { c.DataDir = "" }},
		{"negative minconf", func(c *Config) { c.MinConf = -1 }},
		{"short seed", func(c *Config) { c.Seed = []byte{1, 2, 3} }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(t)
			test.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}

	k, err := New(testConfig(t))
	require.NoError(t, err)
	require.EqualValues(t, DefaultRecoveryWindow, k.cfg.RecoveryWindow)
	require.NotZero(t, k.cfg.DBTimeout)
}

func TestNotStarted(t *testing.T) {
	k, err := New(testConfig(t))
	require.NoError(t, err)

	exists, err := k.Exists()
	require.NoError(t, err)
	require.False(t, exists)

	_, err = k.Balance()
	require.ErrorIs(t, err, ErrNotStarted)
	_, err = k.CurrentAddress()
	require.ErrorIs(t, err, ErrNotStarted)

	addr, err := btcutil.DecodeAddress(
		"bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080",
		&chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)
	_, err = k.SendTo(context.Background(), addr, 1000, 1000)
	require.ErrorIs(t, err, ErrNotStarted)

	require.EqualValues(t, -1, k.BestHeight())
	require.EqualValues(t, -1, k.WalletHeight())
	require.Zero(t, k.ConnectedPeers())
	require.False(t, k.Synced())

	k.Stop()
	k.Stop()
}

// closeWallet unloads the wallet opened by openOrCreate.
func closeWallet(t *testing.T, k *Kit) {
	t.Helper()

	require.NoError(t, k.loader.UnloadWallet())
}

// accountKey returns the extended public key of the default account.
func accountKey(t *testing.T, w *wallet.Wallet) string {
	t.Helper()

	props, err := w.AccountProperties(
		waddrmgr.KeyScopeBIP0084, waddrmgr.DefaultAccountNum,
	)
	require.NoError(t, err)
	require.NotNil(t, props.AccountPubKey)
	return props.AccountPubKey.String()
}

func TestOpenOrCreate(t *testing.T) {
	cfg := testConfig(t)

	var seeds [][]byte
	cfg.OnCreate = func(seed []byte) error {
		seeds = append(seeds, seed)
		return nil
	}

	k, err := New(cfg)
	require.NoError(t, err)

	w, err := k.openOrCreate()
	require.NoError(t, err)
	require.True(t, k.Created())
	require.Len(t, seeds, 1)
	require.Equal(t, &chaincfg.RegressionNetParams, w.ChainParams())

	first := accountKey(t, w)
	closeWallet(t, k)

	// A second kit for the same directory opens the file rather than
	// creating another wallet.
	k2, err := New(cfg)
	require.NoError(t, err)
	exists, err := k2.Exists()
	require.NoError(t, err)
	require.True(t, exists)

	w, err = k2.openOrCreate()
	require.NoError(t, err)
	require.False(t, k2.Created())
	require.Len(t, seeds, 1)
	require.Equal(t, first, accountKey(t, w))
	closeWallet(t, k2)
}

func TestOpenWrongPrivatePass(t *testing.T) {
	cfg := testConfig(t)

	k, err := New(cfg)
	require.NoError(t, err)
	_, err = k.openOrCreate()
	require.NoError(t, err)
	closeWallet(t, k)

	cfg.PrivatePass = []byte("wrong")
	k, err = New(cfg)
	require.NoError(t, err)
	_, err = k.openOrCreate()
	require.Error(t, err)
}

func TestCreateNeedsPrivatePass(t *testing.T) {
	cfg := testConfig(t)
	cfg.PrivatePass = nil

	k, err := New(cfg)
	require.NoError(t, err)
	_, err = k.openOrCreate()
	require.ErrorIs(t, err, ErrNoPrivatePass)
}

// offlineConfig returns a config whose light client only dials a port
// nothing listens on.
func offlineConfig(t *testing.T) Config {
	t.Helper()

	cfg := testConfig(t)
	cfg.ConnectPeers = []string{"127.0.0.1:1"}
	return cfg
}

func TestStartStop(t *testing.T) {
	cfg := offlineConfig(t)

	k, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, k.Start(context.Background()))
	require.True(t, k.Created())

	// Starting twice is a no-op.
	require.NoError(t, k.Start(context.Background()))

	balance, err := k.Balance()
	require.NoError(t, err)
	require.Zero(t, balance)
	require.GreaterOrEqual(t, k.BestHeight(), int32(0))
	require.Zero(t, k.ConnectedPeers())

	// Nothing to spend, and the wallet is locked again afterwards.
	addr, err := btcutil.DecodeAddress(
		"bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080",
		&chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)
	_, err = k.SendTo(context.Background(), addr, 10000, 1000)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Eventually(t, k.wallet.Locked, 5*time.Second,
		10*time.Millisecond)

	k.Stop()
	k.Stop()
	_, err = k.Balance()
	require.ErrorIs(t, err, ErrNotStarted)

	// The databases were released, so another kit reopens the wallet.
	k2, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, k2.Start(context.Background()))
	require.False(t, k2.Created())

	balance, err = k2.Balance()
	require.NoError(t, err)
	require.Zero(t, balance)
	k2.Stop()
}

func TestStartCancelled(t *testing.T) {
	k, err := New(offlineConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, k.Start(ctx), context.Canceled)

	_, err = k.Balance()
	require.ErrorIs(t, err, ErrNotStarted)
	k.Stop()
}

func TestStartRetryAfterFailure(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.PrivatePass = nil

	k, err := New(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, k.Start(context.Background()), ErrNoPrivatePass)
	require.Zero(t, atomic.LoadInt32(&k.started))
	require.Nil(t, k.wallet)

	_, err = k.Balance()
	require.ErrorIs(t, err, ErrNotStarted)

	// The failed attempt does not stop the next one from running.
	k.cfg.PrivatePass = []byte("private")
	require.NoError(t, k.Start(context.Background()))
	require.True(t, k.Created())

	_, err = k.Balance()
	require.NoError(t, err)
	k.Stop()
}
