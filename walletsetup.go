// Copyright (c) 2014-2015 The btcsuite developers
// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"sync"

	"github.com/etfbank/etfbank/internal/prompt"
	"github.com/etfbank/etfbank/kit"
)

// walletPasses holds the passphrases used to open both wallets.
type walletPasses struct {
	public      []byte
	primary     []byte
	etf         []byte
	canTransfer bool
}

// passSource resolves passphrases that were not given on the command line.
type passSource interface {
	PrivatePass(walletName string, create bool) ([]byte, error)
}

// resolvePassphrases collects the passphrases of both wallets.  A missing
// private passphrase is asked for when a prompter is available.  The primary
// wallet needs its private passphrase to transfer funds; the ETF wallet only
// needs one to be created.
func resolvePassphrases(cfg *config, p passSource, primaryExists,
	etfExists bool) (*walletPasses, error) {

	passes := &walletPasses{
		public:  []byte(cfg.WalletPass),
		primary: []byte(cfg.PrivPass),
		etf:     []byte(cfg.ETFPrivPass),
	}

	needPrimary := !primaryExists || !cfg.NoTransfer
	if len(passes.primary) == 0 && needPrimary && p != nil {
		pass, err := p.PrivatePass(cfg.WalletName, !primaryExists)
		if err != nil {
			return nil, err
		}
		passes.primary = pass
	}
	if len(passes.etf) == 0 && !etfExists && p != nil {
		pass, err := p.PrivatePass(cfg.ETFWalletName, true)
		if err != nil {
			return nil, err
		}
		passes.etf = pass
	}

	if len(passes.primary) == 0 && !primaryExists {
		return nil, fmt.Errorf("wallet %s does not exist and no "+
			"private passphrase was given to create it: %w",
			cfg.WalletName, kit.ErrNoPrivatePass)
	}
	if len(passes.etf) == 0 && !etfExists {
		return nil, fmt.Errorf("wallet %s does not exist and no "+
			"private passphrase was given to create it: %w",
			cfg.ETFWalletName, kit.ErrNoPrivatePass)
	}

	passes.canTransfer = !cfg.NoTransfer && len(passes.primary) > 0
	if !cfg.NoTransfer && !passes.canTransfer {
		log.Warnf("No private passphrase for %s, the transfer to %s "+
			"is disabled", cfg.WalletName, cfg.ETFWalletName)
	}
	return passes, nil
}

// seedMtx keeps the seeds of wallets created concurrently from interleaving.
var seedMtx sync.Mutex

// seedPrinter returns the OnCreate hook of a kit.  The seed of a new wallet is
// shown once; interactive users must acknowledge it before startup continues.
func seedPrinter(p *prompt.Prompter, walletName string,
	interactive bool) func([]byte) error {

	return func(seed []byte) error {
		seedMtx.Lock()
		defer seedMtx.Unlock()

		return p.ShowSeed(walletName, seed, interactive)
	}
}
