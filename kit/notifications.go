// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package kit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/lightninglabs/neutrino/cache/lru"
)

// seenCacheSize bounds how many transaction hashes are remembered to avoid
// reporting a transaction twice (once unmined, once mined).
const seenCacheSize = 10000

// CoinsReceived is delivered once for every transaction that credits the
// wallet with a positive net amount.
type CoinsReceived struct {
	// Wallet is the name of the receiving wallet.
	Wallet string

	// Hash is the hash of the receiving transaction.
	Hash chainhash.Hash

	// Tx is the receiving transaction.
	Tx *wire.MsgTx

	// Amount is the value of the wallet's outputs minus the value of the
	// wallet's inputs spent by Tx.
	Amount btcutil.Amount

	// PrevBalance and NewBalance are the wallet's total balance before
	// and after the notification carrying Tx.
	PrevBalance btcutil.Amount
	NewBalance  btcutil.Amount

	// UpdateTime is when the wallet first saw Tx.
	UpdateTime time.Time

	// Height is the height of the block containing Tx, or -1 while Tx is
	// unmined.
	Height int32
}

// seenTx is the cache value for a reported transaction hash.
type seenTx struct{}

// Size implements cache.Value.  Every entry counts as one.
func (seenTx) Size() (uint64, error) {
	return 1, nil
}

// receiptTracker turns wallet transaction notifications into CoinsReceived
// events, reporting each transaction at most once.
type receiptTracker struct {
	wallet  string
	balance btcutil.Amount
	seen    *lru.Cache[chainhash.Hash, seenTx]
	now     func() time.Time

	// total returns the wallet's balance across all accounts.  A
	// notification only lists the accounts it touched, so their sum is
	// used only when total is nil or fails.
	total func() (btcutil.Amount, error)
}

func newReceiptTracker(walletName string, initialBalance btcutil.Amount,
	total func() (btcutil.Amount, error)) *receiptTracker {

	return &receiptTracker{
		wallet:  walletName,
		balance: initialBalance,
		seen:    lru.NewCache[chainhash.Hash, seenTx](seenCacheSize),
		now:     time.Now,
		total:   total,
	}
}

// newBalance returns the wallet balance after n.
func (r *receiptTracker) newBalance(
	n *wallet.TransactionNotifications) btcutil.Amount {

	if r.total != nil {
		total, err := r.total()
		if err == nil {
			return total
		}
		log.Warnf("Wallet %s balance: %v", r.wallet, err)
	}

	var sum btcutil.Amount
	for _, b := range n.NewBalances {
		sum += b.TotalBalance
	}
	return sum
}

// process returns the events carried by n in the order the wallet reported
// them: mined transactions first, block by block, then unmined ones.
func (r *receiptTracker) process(
	n *wallet.TransactionNotifications) ([]*CoinsReceived, error) {

	prev := r.balance
	if len(n.NewBalances) > 0 {
		r.balance = r.newBalance(n)
	}

	var events []*CoinsReceived
	handle := func(s *wallet.TransactionSummary, height int32) error {
		if s.Hash == nil {
			return nil
		}
		if _, err := r.seen.Get(*s.Hash); err == nil {
			return nil
		}

		tx, amount, err := netCredit(s)
		if err != nil {
			return err
		}
		if amount <= 0 {
			return nil
		}
		if _, err := r.seen.Put(*s.Hash, seenTx{}); err != nil {
			return err
		}

		updated := r.now()
		if s.Timestamp > 0 {
			updated = time.Unix(s.Timestamp, 0)
		}

		events = append(events, &CoinsReceived{
			Wallet:      r.wallet,
			Hash:        *s.Hash,
			Tx:          tx,
			Amount:      amount,
			PrevBalance: prev,
			NewBalance:  r.balance,
			UpdateTime:  updated,
			Height:      height,
		})
		return nil
	}

	for _, b := range n.AttachedBlocks {
		for i := range b.Transactions {
			if err := handle(&b.Transactions[i], b.Height); err != nil {
				return events, err
			}
		}
	}
	for i := range n.UnminedTransactions {
		if err := handle(&n.UnminedTransactions[i], -1); err != nil {
			return events, err
		}
	}

	return events, nil
}

// netCredit decodes the summarized transaction and returns it along with the
// value it moves into the wallet.
func netCredit(s *wallet.TransactionSummary) (*wire.MsgTx, btcutil.Amount,
	error) {

	tx := new(wire.MsgTx)
	if err := tx.Deserialize(bytes.NewReader(s.Transaction)); err != nil {
		return nil, 0, fmt.Errorf("decode transaction %v: %w", s.Hash, err)
	}

	var credit btcutil.Amount
	for _, out := range s.MyOutputs {
		if int(out.Index) >= len(tx.TxOut) {
			return nil, 0, fmt.Errorf("transaction %v has no output %d",
				s.Hash, out.Index)
		}
		credit += btcutil.Amount(tx.TxOut[out.Index].Value)
	}
	for _, in := range s.MyInputs {
		credit -= in.PreviousAmount
	}

	return tx, credit, nil
}
