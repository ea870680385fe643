// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcwallet/wallet"
	"github.com/etfbank/etfbank/internal/prompt"
	"github.com/etfbank/etfbank/internal/zero"
	"github.com/etfbank/etfbank/kit"
	"github.com/etfbank/etfbank/monitor"
	"github.com/etfbank/etfbank/transfer"
	"github.com/etfbank/etfbank/txlog"
	flags "github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Work around defer not working after os.Exit.
	if err := walletMain(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// walletMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func walletMain(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		if errors.Is(err, errShowSubsystems) {
			return nil
		}
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	err = initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer closeLogRotator()

	sd := newShutdown()
	ctx := sd.Context()

	log.Infof("Using network %s, data in %s", activeNet.Name, cfg.netDir)

	interactive := prompt.Interactive()
	prompter := prompt.New(os.Stdin, os.Stdout)

	primaryCfg := kitConfig(cfg, cfg.WalletName)
	primaryCfg.OnCreate = seedPrinter(prompter, cfg.WalletName, interactive)
	etfCfg := kitConfig(cfg, cfg.ETFWalletName)
	etfCfg.OnCreate = seedPrinter(prompter, cfg.ETFWalletName, interactive)

	primaryExists, err := kit.WalletExists(&primaryCfg)
	if err != nil {
		return err
	}
	etfExists, err := kit.WalletExists(&etfCfg)
	if err != nil {
		return err
	}

	var passes passSource
	if interactive {
		passes = prompter
	}
	pw, err := resolvePassphrases(cfg, passes, primaryExists, etfExists)
	if err != nil {
		log.Error(err)
		return err
	}
	defer zero.All(pw.primary, pw.etf)

	primaryCfg.PublicPass, primaryCfg.PrivatePass = pw.public, pw.primary
	etfCfg.PublicPass, etfCfg.PrivatePass = pw.public, pw.etf

	primary, err := kit.New(primaryCfg)
	if err != nil {
		return err
	}
	etf, err := kit.New(etfCfg)
	if err != nil {
		return err
	}

	// Kits are stopped by the interrupt handler even when only one of
	// them started.
	sd.AddHandler(primary.Stop)
	sd.AddHandler(etf.Stop)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return primary.Start(gctx) })
	g.Go(func() error { return etf.Start(gctx) })
	if err := g.Wait(); err != nil {
		log.Errorf("Unable to start wallets: %v", err)
		sd.Request()
		<-sd.Done()
		return err
	}

	var xfer monitor.Transferer
	if pw.canTransfer {
		store, err := transfer.OpenStore(
			filepath.Join(cfg.netDir, transfer.StoreFilename),
			wallet.DefaultDBTimeout,
		)
		if err != nil {
			log.Errorf("Unable to open transfer state: %v", err)
			sd.Request()
			<-sd.Done()
			return err
		}
		sd.AddHandler(func() {
			if err := store.Close(); err != nil {
				log.Errorf("Unable to close transfer state: %v",
					err)
			}
		})

		t, err := transfer.New(transfer.Config{
			Source:      primary,
			Destination: etf,
			Divisor:     cfg.TransferDivisor,
			FeePerKb:    cfg.FeeRate.Amount,
			Store:       store,
			Out:         os.Stdout,
		})
		if err != nil {
			sd.Request()
			<-sd.Done()
			return err
		}
		xfer = t
	}

	mon, err := monitor.New(monitor.Config{
		Primary:  primary,
		ETF:      etf,
		Network:  activeNet.Name,
		Log:      txlog.New(cfg.RecentWindow, nil),
		Transfer: xfer,
		Interval: cfg.StatusInterval,
		Out:      os.Stdout,
	})
	if err != nil {
		sd.Request()
		<-sd.Done()
		return err
	}

	// The monitor returns once shutdown has begun.
	if err := mon.Run(ctx); err != nil {
		log.Errorf("Status monitor: %v", err)
	}

	<-sd.Done()
	log.Info("Shutdown complete")
	return nil
}

// kitConfig returns the kit configuration of the named wallet.
func kitConfig(cfg *config, name string) kit.Config {
	return kit.Config{
		Name:         name,
		NetParams:    activeNet.Params,
		DataDir:      cfg.netDir,
		ConnectPeers: cfg.ConnectPeers,
		AddPeers:     cfg.AddPeers,
		MinConf:      cfg.MinConf,
	}
}
