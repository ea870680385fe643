package netparams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirName(t *testing.T) {
	require.Equal(t, "testnet", TestNet3Params.DirName())
	require.Equal(t, "mainnet", MainNetParams.DirName())
	require.Equal(t, "regtest", RegressionNetParams.DirName())
	require.Equal(t, "simnet", SimNetParams.DirName())
}

func TestByName(t *testing.T) {
	p, err := ByName("testnet3")
	require.NoError(t, err)
	require.Equal(t, &TestNet3Params, p)
	require.Equal(t, "18333", p.PeerPort)

	_, err = ByName("testnet9")
	require.Error(t, err)
}
