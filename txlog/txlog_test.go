package txlog

import (
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(b byte, wallet string, amt int64, seen time.Time) Entry {
	return Entry{
		Hash:       chainhash.Hash{b},
		Wallet:     wallet,
		Amount:     btcutil.Amount(amt),
		UpdateTime: seen,
	}
}

func TestAddWindow(t *testing.T) {
	clk := clock.NewTestClock(testTime)
	l := New(time.Hour, clk)

	require.True(t, l.Add(entry(1, "a", 10, testTime)))
	require.True(t, l.Add(entry(2, "a", 10, testTime.Add(-time.Hour))),
		"entry exactly at the boundary is recent")
	require.False(t, l.Add(entry(3, "a", 10,
		testTime.Add(-time.Hour-time.Second))))
	require.True(t, l.Add(entry(4, "a", 10, testTime.Add(time.Minute))),
		"future entries are kept")

	require.Equal(t, 3, l.Len())
}

func TestPrune(t *testing.T) {
	clk := clock.NewTestClock(testTime)
	l := New(DefaultWindow, clk)

	l.Add(entry(1, "primary", 100, testTime.Add(-20*time.Hour)))
	l.Add(entry(2, "etf", 200, testTime.Add(-2*time.Hour)))
	l.Add(entry(3, "primary", 300, testTime))

	require.Equal(t, 0, l.Prune())

	clk.SetTime(testTime.Add(5 * time.Hour))
	require.Equal(t, 1, l.Prune())

	entries := l.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, chainhash.Hash{2}, entries[0].Hash)
	require.Equal(t, chainhash.Hash{3}, entries[1].Hash)

	clk.SetTime(testTime.Add(48 * time.Hour))
	require.Equal(t, 2, l.Prune())
	require.Zero(t, l.Len())
}

func TestTotal(t *testing.T) {
	l := New(0, clock.NewTestClock(testTime))
	require.Equal(t, DefaultWindow, l.Window())

	l.Add(entry(1, "primary", 100, testTime))
	l.Add(entry(2, "etf", 200, testTime))
	l.Add(entry(3, "primary", 300, testTime))

	require.EqualValues(t, 600, l.Total(""))
	require.EqualValues(t, 400, l.Total("primary"))
	require.EqualValues(t, 200, l.Total("etf"))
	require.Zero(t, l.Total("other"))
}

func TestEntriesIsCopy(t *testing.T) {
	l := New(time.Hour, clock.NewTestClock(testTime))
	l.Add(entry(1, "a", 1, testTime))

	entries := l.Entries()
	entries[0].Wallet = "mutated"
	require.Equal(t, "a", l.Entries()[0].Wallet)
}

func TestConcurrentAddPrune(t *testing.T) {
	clk := clock.NewTestClock(testTime)
	l := New(time.Hour, clk)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Add(entry(byte(w), "w", 1, testTime))
				l.Prune()
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 400, l.Len())
}
