package cfgutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

func TestAmountFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    btcutil.Amount
		wantErr bool
	}{
		{in: "0.00001", want: 1000},
		{in: "0.00001 BTC", want: 1000},
		{in: "1000 sat", want: 1000},
		{in: "1000sat", want: 1000},
		{in: "1", want: btcutil.SatoshiPerBitcoin},
		{in: "-1 sat", wantErr: true},
		{in: "-0.1", wantErr: true},
		{in: "lots", wantErr: true},
		{in: "1.5 sat", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			f := NewAmountFlag(0)
			err := f.UnmarshalFlag(test.in)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.want, f.Amount)
		})
	}
}

func TestPathFlag(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p := NewPathFlag("/var/lib/etfbank/")
	require.False(t, p.IsSet())
	require.Equal(t, "/var/lib/etfbank", p.Path())

	v, err := p.MarshalFlag()
	require.NoError(t, err)
	require.Equal(t, "/var/lib/etfbank", v)

	// A new default is used until a path is parsed.
	p.SetDefault("/srv/etfbank/etfbank.conf")
	require.Equal(t, "/srv/etfbank/etfbank.conf", p.String())
	require.False(t, p.IsSet())

	// Parsing the default value still counts as set.
	require.NoError(t, p.UnmarshalFlag("/srv/etfbank/etfbank.conf"))
	require.True(t, p.IsSet())

	require.NoError(t, p.UnmarshalFlag("~/etfbank/../etf"))
	require.True(t, p.IsSet())
	require.Equal(t, filepath.Join(home, "etf"), p.Path())

	p.SetDefault("/elsewhere")
	require.Equal(t, filepath.Join(home, "etf"), p.Path())
}

func TestNormalizeAddresses(t *testing.T) {
	got, err := NormalizeAddresses([]string{
		"127.0.0.1", "127.0.0.1:18333", "::1", "node.example:1234",
	}, "18333")
	require.NoError(t, err)
	require.Equal(t, []string{
		"127.0.0.1:18333", "[::1]:18333", "node.example:1234",
	}, got)

	_, err = NormalizeAddresses([]string{"[::1"}, "18333")
	require.Error(t, err)
}

func TestFileExistsAndExpand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	ok, err := FileExists(path)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, os.WriteFile(path, nil, 0600))
	ok, err = FileExists(path)
	require.NoError(t, err)
	require.True(t, ok)

	t.Setenv("ETFBANK_TEST_DIR", dir)
	require.Equal(t, path, CleanAndExpandPath("$ETFBANK_TEST_DIR/./f"))
	require.Equal(t, "", CleanAndExpandPath(""))

	if home, err := os.UserHomeDir(); err == nil {
		require.Equal(t, filepath.Join(home, "x"), CleanAndExpandPath("~/x"))
	}
}
