// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transfer moves a fixed fraction of one wallet's balance to another
// wallet exactly once.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/etfbank/etfbank/kit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultDivisor sends a tenth of the source balance.
const DefaultDivisor = 10

// Source is the wallet funds are taken from.
type Source interface {
	Name() string
	Balance() (btcutil.Amount, error)
	SendTo(ctx context.Context, addr btcutil.Address,
		amount, feePerKb btcutil.Amount) (*wire.MsgTx, error)
}

// Destination is the wallet funds are sent to.
type Destination interface {
	Name() string
	CurrentAddress() (btcutil.Address, error)
}

// Config configures a Transferer.
type Config struct {
	Source      Source
	Destination Destination

	// Divisor selects the transferred fraction: balance / Divisor.
	Divisor int64

	// FeePerKb is the fee rate of the transfer transaction.
	FeePerKb btcutil.Amount

	// Store persists the attempt.  Without a store the one-shot state
	// only lives as long as the process.
	Store *Store

	// Out receives user facing progress messages.
	Out io.Writer

	// Now returns the current time.
	Now func() time.Time
}

// Transferer performs the one-shot transfer.  Once an attempt has been made,
// successful or not, later calls do nothing.
type Transferer struct {
	cfg Config

	mu   sync.Mutex
	last fn.Option[Receipt]
}

// New returns a Transferer, restoring the outcome of an earlier attempt from
// the store.
func New(cfg Config) (*Transferer, error) {
	if cfg.Source == nil || cfg.Destination == nil {
		return nil, errors.New("transfer source and destination are " +
			"required")
	}
	if cfg.Divisor == 0 {
		cfg.Divisor = DefaultDivisor
	}
	if cfg.Divisor < 1 {
		return nil, fmt.Errorf("invalid transfer divisor %d",
			cfg.Divisor)
	}
	if cfg.FeePerKb == 0 {
		cfg.FeePerKb = txrules.DefaultRelayFeePerKb
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	t := &Transferer{cfg: cfg, last: fn.None[Receipt]()}
	if cfg.Store != nil {
		last, err := cfg.Store.Load()
		if err != nil {
			return nil, err
		}
		last.WhenSome(func(r Receipt) {
			log.Infof("Transfer already attempted at %v (%v, %v)",
				r.Time, r.Status, r.TxHash)
		})
		t.last = last
	}
	return t, nil
}

// Done reports whether the transfer has been attempted.
func (t *Transferer) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last.IsSome()
}

// Last returns the receipt of the attempt, if one was made.
func (t *Transferer) Last() fn.Option[Receipt] {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last
}

// Amount returns the amount a transfer from balance would send.
func (t *Transferer) Amount(balance btcutil.Amount) btcutil.Amount {
	return balance / btcutil.Amount(t.cfg.Divisor)
}

// MaybeTransfer sends balance/Divisor from the source to the destination's
// current address if no attempt has been made yet and the source holds
// funds.  Amounts too small to relay are skipped without using up the
// attempt.  A failed send uses up the attempt and is returned along with its
// receipt.
func (t *Transferer) MaybeTransfer(ctx context.Context) (fn.Option[Receipt],
	error) {

	none := fn.None[Receipt]()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last.IsSome() {
		return none, nil
	}

	balance, err := t.cfg.Source.Balance()
	if err != nil {
		return none, fmt.Errorf("%s balance: %w", t.cfg.Source.Name(),
			err)
	}
	if balance <= 0 {
		return none, nil
	}

	amount := t.Amount(balance)
	addr, err := t.cfg.Destination.CurrentAddress()
	if err != nil {
		return none, fmt.Errorf("%s address: %w",
			t.cfg.Destination.Name(), err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return none, err
	}
	err = txrules.CheckOutput(
		wire.NewTxOut(int64(amount), pkScript), t.cfg.FeePerKb,
	)
	if err != nil {
		log.Debugf("Not transferring %v of %v: %v", amount, balance,
			err)
		return none, nil
	}

	fee := EstimateFee(t.cfg.FeePerKb, len(pkScript))
	log.Infof("Transferring %v of %v from %s to %s (estimated fee %v)",
		amount, balance, t.cfg.Source.Name(), t.cfg.Destination.Name(),
		fee)
	fmt.Fprintf(t.cfg.Out, "Sending %v to %v\n", amount, addr)

	tx, sendErr := t.cfg.Source.SendTo(ctx, addr, amount, t.cfg.FeePerKb)

	receipt := Receipt{
		Amount: amount,
		Time:   t.cfg.Now(),
		Status: StatusSent,
	}
	switch {
	case sendErr == nil:
		receipt.TxHash = tx.TxHash()
		fmt.Fprintf(t.cfg.Out, "Transaction sent! Transaction hash: "+
			"%v\n", receipt.TxHash)

	case errors.Is(sendErr, kit.ErrInsufficientFunds):
		receipt.Status = StatusFailed
		fmt.Fprintf(t.cfg.Out, "Insufficient funds in the source "+
			"wallet. %v\n", sendErr)

	default:
		receipt.Status = StatusFailed
		fmt.Fprintf(t.cfg.Out, "An error occurred: %v\n", sendErr)
	}

	t.last = fn.Some(receipt)
	if t.cfg.Store != nil {
		if err := t.cfg.Store.Save(receipt); err != nil {
			log.Errorf("Unable to persist transfer receipt: %v", err)
			if sendErr == nil {
				return t.last, err
			}
		}
	}

	if sendErr != nil {
		return t.last, fmt.Errorf("transfer from %s: %w",
			t.cfg.Source.Name(), sendErr)
	}
	return t.last, nil
}
