// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txlog keeps an in-memory record of transactions received by the
// monitored wallets during a trailing time window.
package txlog

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/clock"
)

// DefaultWindow is how long a received transaction stays in the log.
const DefaultWindow = 24 * time.Hour

// Entry describes one received transaction.
type Entry struct {
	// Hash is the transaction hash.
	Hash chainhash.Hash

	// Wallet names the wallet that received the coins.
	Wallet string

	// Amount is the net amount credited to the wallet.
	Amount btcutil.Amount

	// UpdateTime is when the wallet first saw the transaction.
	UpdateTime time.Time
}

// Log is a fixed-window transaction log.  An entry is recent while
// now - UpdateTime <= window.  Log is safe for concurrent access.
type Log struct {
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Log.  A non-positive window selects DefaultWindow and
// a nil clock selects the system clock.
func New(window time.Duration, clk clock.Clock) *Log {
	if window <= 0 {
		window = DefaultWindow
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Log{window: window, clock: clk}
}

// Window returns the retention window of the log.
func (l *Log) Window() time.Duration {
	return l.window
}

func (l *Log) recent(now time.Time, e *Entry) bool {
	return now.Sub(e.UpdateTime) <= l.window
}

// Add appends e if it is recent and reports whether it was added.
func (l *Log) Add(e Entry) bool {
	now := l.clock.Now()
	if !l.recent(now, &e) {
		log.Debugf("Ignoring %v for %s: seen %v ago", e.Hash, e.Wallet,
			now.Sub(e.UpdateTime))
		return false
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	log.Tracef("Recorded %v (%v) for %s", e.Hash, e.Amount, e.Wallet)
	return true
}

// Prune removes every entry that has left the window and returns how many
// were removed.
func (l *Log) Prune() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for i := range l.entries {
		if l.recent(now, &l.entries[i]) {
			kept = append(kept, l.entries[i])
		}
	}
	removed := len(l.entries) - len(kept)

	// Drop references held past the new length.
	clear(l.entries[len(kept):])
	l.entries = kept

	if removed > 0 {
		log.Debugf("Pruned %d transaction(s) older than %v", removed,
			l.window)
	}
	return removed
}

// Entries returns a copy of the logged entries in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Entry(nil), l.entries...)
}

// Len returns the number of logged entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// Total sums the amounts of the logged entries, optionally restricted to one
// wallet.  An empty wallet name matches all entries.
func (l *Log) Total(wallet string) btcutil.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total btcutil.Amount
	for _, e := range l.entries {
		if wallet == "" || e.Wallet == wallet {
			total += e.Amount
		}
	}
	return total
}
