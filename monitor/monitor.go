// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package monitor prints the periodic wallet status, records received
// transactions and drives the one-shot transfer.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/etfbank/etfbank/kit"
	"github.com/etfbank/etfbank/transfer"
	"github.com/etfbank/etfbank/txlog"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"
)

// DefaultInterval is the time between two status reports.
const DefaultInterval = 30 * time.Second

// Wallet is a monitored wallet.
type Wallet interface {
	Name() string
	Balance() (btcutil.Amount, error)
	CurrentAddress() (btcutil.Address, error)
	BestHeight() int32
	ConnectedPeers() int32
	CoinsReceived() <-chan *kit.CoinsReceived
}

// Transferer performs the one-shot transfer.
type Transferer interface {
	MaybeTransfer(ctx context.Context) (fn.Option[transfer.Receipt], error)
}

// Config configures a Monitor.
type Config struct {
	// Primary is the wallet whose chain state is reported and whose
	// funds are transferred.
	Primary Wallet

	// ETF is the wallet receiving the transfer.
	ETF Wallet

	// Network is the name printed in the wallet info.
	Network string

	// Log records received transactions.
	Log *txlog.Log

	// Transfer is attempted after every status report.  A nil Transfer
	// disables transfers.
	Transfer Transferer

	// Ticker paces the status reports.  When nil a ticker firing every
	// Interval is used.
	Ticker ticker.Ticker

	// Interval is used when Ticker is nil.
	Interval time.Duration

	// Out receives the user facing output.
	Out io.Writer
}

// Monitor reports wallet status until its context is cancelled.
type Monitor struct {
	cfg Config

	// outMtx serializes writes to cfg.Out from the status loop and the
	// event handlers.
	outMtx sync.Mutex
}

// New returns a Monitor for cfg.
func New(cfg Config) (*Monitor, error) {
	if cfg.Primary == nil || cfg.ETF == nil {
		return nil, errors.New("monitor requires both wallets")
	}
	if cfg.Log == nil {
		cfg.Log = txlog.New(txlog.DefaultWindow, nil)
	}
	if cfg.Ticker == nil {
		if cfg.Interval <= 0 {
			cfg.Interval = DefaultInterval
		}
		cfg.Ticker = ticker.New(cfg.Interval)
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Monitor{cfg: cfg}, nil
}

func (m *Monitor) printf(format string, args ...interface{}) {
	m.outMtx.Lock()
	fmt.Fprintf(m.cfg.Out, format, args...)
	m.outMtx.Unlock()
}

// PrintInfo prints the balance, network, peer count, receive address and
// chain height of w.
func (m *Monitor) PrintInfo(w Wallet) {
	balance, err := w.Balance()
	if err != nil {
		log.Warnf("Balance of %s: %v", w.Name(), err)
	}
	address := "unavailable"
	if addr, err := w.CurrentAddress(); err != nil {
		log.Warnf("Address of %s: %v", w.Name(), err)
	} else {
		address = addr.String()
	}

	m.outMtx.Lock()
	defer m.outMtx.Unlock()

	out := m.cfg.Out
	fmt.Fprintf(out, "Initial Balance: %v\n", balance)
	fmt.Fprintf(out, "Network: %s\n", m.cfg.Network)
	fmt.Fprintf(out, "Connected peers: %d\n", w.ConnectedPeers())
	fmt.Fprintf(out, "Wallet address: %s\n", address)
	fmt.Fprintf(out, "Block height: %d\n", w.BestHeight())
}

// Report prints one status report: both balances in satoshis followed by the
// primary wallet's block height and peer count.
func (m *Monitor) Report() {
	primary, err := m.cfg.Primary.Balance()
	if err != nil {
		log.Warnf("Balance of %s: %v", m.cfg.Primary.Name(), err)
	}
	etf, err := m.cfg.ETF.Balance()
	if err != nil {
		log.Warnf("Balance of %s: %v", m.cfg.ETF.Name(), err)
	}

	m.outMtx.Lock()
	defer m.outMtx.Unlock()

	out := m.cfg.Out
	fmt.Fprintf(out, "Wallet balance (in satoshis): %d\n", int64(primary))
	fmt.Fprintf(out, "Wallet balance ETF (in satoshis): %d\n", int64(etf))
	fmt.Fprintf(out, "Block height: %d\n", m.cfg.Primary.BestHeight())
	fmt.Fprintf(out, "Peers: %d\n", m.cfg.Primary.ConnectedPeers())
}

func (m *Monitor) record(c *kit.CoinsReceived, etf bool) {
	if etf {
		m.printf("New recent transaction ETF: %v\n", c.Hash)
	} else {
		log.Debugf("New recent transaction %s: %v (%v)", c.Wallet,
			c.Hash, c.Amount)
	}

	m.cfg.Log.Add(txlog.Entry{
		Hash:       c.Hash,
		Wallet:     c.Wallet,
		Amount:     c.Amount,
		UpdateTime: c.UpdateTime,
	})
}

func (m *Monitor) handleCoins(ctx context.Context, w Wallet, etf bool) {
	coins := w.CoinsReceived()
	for {
		select {
		case c, ok := <-coins:
			if !ok {
				log.Debugf("Coin events of %s closed", w.Name())
				return
			}
			m.record(c, etf)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.Report()
	m.cfg.Log.Prune()

	if m.cfg.Transfer == nil {
		return
	}
	if _, err := m.cfg.Transfer.MaybeTransfer(ctx); err != nil {
		log.Errorf("Transfer: %v", err)
	}
}

// Run prints the info of both wallets, reports status once right away and
// then again on every tick until ctx is cancelled.  Coin events of both wallets are recorded while Run
// is active.
func (m *Monitor) Run(ctx context.Context) error {
	m.printf("Wallet info:\n")
	m.PrintInfo(m.cfg.Primary)
	m.printf("ETF Wallet info:\n")
	m.PrintInfo(m.cfg.ETF)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.handleCoins(ctx, m.cfg.Primary, false)
	}()
	go func() {
		defer wg.Done()
		m.handleCoins(ctx, m.cfg.ETF, true)
	}()
	defer wg.Wait()

	t := m.cfg.Ticker
	t.Resume()
	defer t.Stop()

	log.Infof("Reporting status of %s and %s", m.cfg.Primary.Name(),
		m.cfg.ETF.Name())

	m.tick(ctx)
	for {
		select {
		case <-t.Ticks():
			m.tick(ctx)

		case <-ctx.Done():
			log.Infof("Status monitor shutting down")
			return nil
		}
	}
}
