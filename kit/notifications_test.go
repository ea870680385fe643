package kit

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/stretchr/testify/require"
)

func testTx(t *testing.T, lockTime uint32, values ...int64) (*chainhash.Hash,
	[]byte) {

	t.Helper()

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 1}, nil, nil))
	for _, v := range values {
		tx.AddTxOut(wire.NewTxOut(v, []byte{0x51}))
	}
	tx.LockTime = lockTime

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	hash := tx.TxHash()
	return &hash, buf.Bytes()
}

func TestReceiptTrackerReportsOnce(t *testing.T) {
	hash, raw := testTx(t, 1, 5000, 7000)
	summary := wallet.TransactionSummary{
		Hash:        hash,
		Transaction: raw,
		MyOutputs: []wallet.TransactionSummaryOutput{
			{Index: 1},
		},
		Timestamp: 1700000000,
	}

	r := newReceiptTracker("bitcoin-wallet-ETF", 1000, nil)

	events, err := r.process(&wallet.TransactionNotifications{
		UnminedTransactions: []wallet.TransactionSummary{summary},
		NewBalances: []wallet.AccountBalance{
			{Account: 0, TotalBalance: 8000},
		},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	require.Equal(t, "bitcoin-wallet-ETF", e.Wallet)
	require.Equal(t, *hash, e.Hash)
	require.Equal(t, btcutil.Amount(7000), e.Amount)
	require.Equal(t, btcutil.Amount(1000), e.PrevBalance)
	require.Equal(t, btcutil.Amount(8000), e.NewBalance)
	require.Equal(t, time.Unix(1700000000, 0), e.UpdateTime)
	require.EqualValues(t, -1, e.Height)
	require.Equal(t, *hash, e.Tx.TxHash())

	// The same transaction confirming is not reported again.
	events, err = r.process(&wallet.TransactionNotifications{
		AttachedBlocks: []wallet.Block{{
			Height:       101,
			Transactions: []wallet.TransactionSummary{summary},
		}},
	})
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestReceiptTrackerMinedOrder(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	h1, raw1 := testTx(t, 1, 100)
	h2, raw2 := testTx(t, 2, 200)
	h3, raw3 := testTx(t, 3, 300)

	r := newReceiptTracker("w", 0, nil)
	r.now = func() time.Time { return now }

	mine := []wallet.TransactionSummaryOutput{{Index: 0}}
	events, err := r.process(&wallet.TransactionNotifications{
		AttachedBlocks: []wallet.Block{
			{Height: 10, Transactions: []wallet.TransactionSummary{
				{Hash: h1, Transaction: raw1, MyOutputs: mine},
			}},
			{Height: 11, Transactions: []wallet.TransactionSummary{
				{Hash: h2, Transaction: raw2, MyOutputs: mine},
			}},
		},
		UnminedTransactions: []wallet.TransactionSummary{
			{Hash: h3, Transaction: raw3, MyOutputs: mine},
		},
	})
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.Equal(t, *h1, events[0].Hash)
	require.EqualValues(t, 10, events[0].Height)
	require.Equal(t, *h2, events[1].Hash)
	require.EqualValues(t, 11, events[1].Height)
	require.Equal(t, *h3, events[2].Hash)
	require.EqualValues(t, -1, events[2].Height)
	require.Equal(t, now, events[2].UpdateTime)
}

func TestReceiptTrackerIgnoresSpends(t *testing.T) {
	// A send with change: the wallet spent 10000 and got 4000 back.
	hash, raw := testTx(t, 1, 5000, 4000)
	r := newReceiptTracker("bitcoin-wallet", 10000, nil)

	events, err := r.process(&wallet.TransactionNotifications{
		UnminedTransactions: []wallet.TransactionSummary{{
			Hash:        hash,
			Transaction: raw,
			MyInputs: []wallet.TransactionSummaryInput{
				{Index: 0, PreviousAmount: 10000},
			},
			MyOutputs: []wallet.TransactionSummaryOutput{
				{Index: 1, Internal: true},
			},
		}},
		NewBalances: []wallet.AccountBalance{{TotalBalance: 4000}},
	})
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, btcutil.Amount(4000), r.balance)
}

func TestReceiptTrackerBadOutputIndex(t *testing.T) {
	hash, raw := testTx(t, 1, 5000)
	r := newReceiptTracker("w", 0, nil)

	_, err := r.process(&wallet.TransactionNotifications{
		UnminedTransactions: []wallet.TransactionSummary{{
			Hash:        hash,
			Transaction: raw,
			MyOutputs:   []wallet.TransactionSummaryOutput{{Index: 3}},
		}},
	})
	require.Error(t, err)

	_, err = r.process(&wallet.TransactionNotifications{
		UnminedTransactions: []wallet.TransactionSummary{{
			Hash:        hash,
			Transaction: []byte{0x01},
		}},
	})
	require.Error(t, err)
}

func TestReceiptTrackerPartialBalances(t *testing.T) {
	hash, raw := testTx(t, 1, 3000)
	summary := wallet.TransactionSummary{
		Hash:        hash,
		Transaction: raw,
		MyOutputs:   []wallet.TransactionSummaryOutput{{Index: 0}},
	}

	// The notification lists only the credited account while another
	// account holds 50000.
	n := &wallet.TransactionNotifications{
		UnminedTransactions: []wallet.TransactionSummary{summary},
		NewBalances: []wallet.AccountBalance{
			{Account: 1, TotalBalance: 3000},
		},
	}

	r := newReceiptTracker("w", 50000, func() (btcutil.Amount, error) {
		return 53000, nil
	})
	events, err := r.process(n)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, btcutil.Amount(50000), events[0].PrevBalance)
	require.Equal(t, btcutil.Amount(53000), events[0].NewBalance)

	// A failing balance lookup falls back to the listed accounts.
	r = newReceiptTracker("w", 50000, func() (btcutil.Amount, error) {
		return 0, errors.New("db closed")
	})
	events, err = r.process(n)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, btcutil.Amount(3000), events[0].NewBalance)
}
