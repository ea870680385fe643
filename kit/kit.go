// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package kit bundles a btcwallet wallet with a neutrino light client so a
// caller can open or create a wallet file, keep it synced with the network and
// react to incoming coins without wiring the individual services together.
package kit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/chain"
	"github.com/btcsuite/btcwallet/waddrmgr"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/neutrino"
)

const (
	// neutrinoDBName is the file holding the light client's block header
	// and filter header indexes.
	neutrinoDBName = "neutrino.db"

	// DefaultRecoveryWindow is the address look-ahead used when syncing a
	// wallet.
	DefaultRecoveryWindow = 250

	// DefaultMinConf is the number of confirmations an output needs before
	// it counts towards the balance and may be spent.
	DefaultMinConf = 1

	// eventBacklog is how many CoinsReceived events are buffered for a
	// slow consumer.
	eventBacklog = 64
)

var (
	// ErrInsufficientFunds is returned by SendTo when the wallet cannot
	// fund the requested amount plus fees.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotStarted is returned by operations that need a running kit.
	ErrNotStarted = errors.New("wallet kit not started")

	// ErrNoPrivatePass is returned when an operation needs the wallet's
	// private passphrase and none was configured.
	ErrNoPrivatePass = errors.New("private passphrase not configured")
)

// Config describes one wallet kit.
type Config struct {
	// Name is the wallet name.  All of the kit's files live in a
	// directory of this name below DataDir.
	Name string

	// NetParams selects the bitcoin network.
	NetParams *chaincfg.Params

	// DataDir is the per-network directory holding wallet directories.
	DataDir string

	// PublicPass encrypts the wallet's public data.
	PublicPass []byte

	// PrivatePass encrypts the wallet's private keys.  It is required to
	// create a wallet and to send from it.
	PrivatePass []byte

	// Seed, when set, is used instead of a random seed when the wallet
	// is created.  Birthday should then be set to the seed's age.
	Seed []byte

	// Birthday is the earliest time the wallet may have received coins.
	// Zero means now.
	Birthday time.Time

	// ConnectPeers restricts the light client to these peers.
	ConnectPeers []string

	// AddPeers are peers used in addition to discovered ones.
	AddPeers []string

	// DBTimeout bounds how long opening a database waits for its lock.
	DBTimeout time.Duration

	// RecoveryWindow is the address look-ahead used while syncing.
	RecoveryWindow uint32

	// MinConf is the confirmation requirement for balances and coin
	// selection.
	MinConf int32

	// OnCreate is called with the generation seed after a new wallet has
	// been written to disk.
	OnCreate func(seed []byte) error
}

func (c *Config) validate() error {
	switch {
	case c.Name == "":
		return errors.New("wallet name is required")
	case c.NetParams == nil:
		return errors.New("network parameters are required")
	case c.DataDir == "":
		return errors.New("data directory is required")
	case c.MinConf < 0:
		return fmt.Errorf("negative minconf %d", c.MinConf)
	}
	if c.Seed != nil && (len(c.Seed) < hdkeychain.MinSeedBytes ||
		len(c.Seed) > hdkeychain.MaxSeedBytes) {

		return fmt.Errorf("seed must be between %d and %d bytes",
			hdkeychain.MinSeedBytes, hdkeychain.MaxSeedBytes)
	}
	if c.DBTimeout == 0 {
		c.DBTimeout = wallet.DefaultDBTimeout
	}
	if c.RecoveryWindow == 0 {
		c.RecoveryWindow = DefaultRecoveryWindow
	}
	return nil
}

// Kit owns a wallet and the light client it syncs from.
type Kit struct {
	started int32 // To be used atomically.
	stopped int32 // To be used atomically.

	cfg    Config
	dir    string
	loader *wallet.Loader

	wallet      *wallet.Wallet
	spvDB       walletdb.DB
	chainSvc    *neutrino.ChainService
	chainClient *chain.NeutrinoClient
	created     bool

	// sendMtx serializes unlock/send/lock cycles.
	sendMtx sync.Mutex

	coins chan *CoinsReceived
	quit  chan struct{}
	wg    sync.WaitGroup
}

// New returns a kit for cfg.  Nothing is opened until Start.
func New(cfg Config) (*Kit, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dir := filepath.Join(cfg.DataDir, cfg.Name)
	return &Kit{
		cfg: cfg,
		dir: dir,
		loader: wallet.NewLoader(
			cfg.NetParams, dir, true, cfg.DBTimeout,
			cfg.RecoveryWindow,
		),
		coins: make(chan *CoinsReceived, eventBacklog),
		quit:  make(chan struct{}),
	}, nil
}

// Name returns the configured wallet name.
func (k *Kit) Name() string {
	return k.cfg.Name
}

// Dir returns the directory holding the kit's files.
func (k *Kit) Dir() string {
	return k.dir
}

// Params returns the network the kit runs on.
func (k *Kit) Params() *chaincfg.Params {
	return k.cfg.NetParams
}

// Exists reports whether the wallet file is already on disk.
func (k *Kit) Exists() (bool, error) {
	return k.loader.WalletExists()
}

// WalletExists reports whether the wallet described by cfg is on disk
// without constructing a kit.
func WalletExists(cfg *Config) (bool, error) {
	if cfg.NetParams == nil {
		return false, errors.New("network parameters are required")
	}
	loader := wallet.NewLoader(
		cfg.NetParams, filepath.Join(cfg.DataDir, cfg.Name), true,
		wallet.DefaultDBTimeout, 0,
	)
	return loader.WalletExists()
}

// Created reports whether Start created the wallet file.
func (k *Kit) Created() bool {
	return k.created
}

// Start opens the wallet, creating it first if there is no wallet file, and
// starts the light client the wallet syncs from.  Startup does not wait for
// the chain to sync.  A kit whose Start failed may be started again.
func (k *Kit) Start(ctx context.Context) (err error) {
	if !atomic.CompareAndSwapInt32(&k.started, 0, 1) {
		return nil
	}
	defer func() {
		if err != nil {
			k.release()
			atomic.StoreInt32(&k.started, 0)
		}
	}()

	if err := os.MkdirAll(k.dir, 0700); err != nil {
		return err
	}

	w, err := k.openOrCreate()
	if err != nil {
		return err
	}
	k.wallet = w

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := k.startChain(); err != nil {
		return err
	}
	w.SynchronizeRPC(k.chainClient)

	balance, err := w.CalculateBalance(0)
	if err != nil {
		return fmt.Errorf("wallet %s balance: %w", k.cfg.Name, err)
	}

	k.wg.Add(1)
	go k.notificationHandler(newReceiptTracker(
		k.cfg.Name, balance, func() (btcutil.Amount, error) {
			return w.CalculateBalance(0)
		},
	))

	log.Infof("Wallet %s started on %s (%s)", k.cfg.Name,
		k.cfg.NetParams.Name, k.dir)
	return nil
}

// openOrCreate opens the wallet file, or creates it when missing.
func (k *Kit) openOrCreate() (*wallet.Wallet, error) {
	exists, err := k.loader.WalletExists()
	if err != nil {
		return nil, err
	}

	if exists {
		w, err := k.loader.OpenExistingWallet(k.cfg.PublicPass, false)
		if err != nil {
			return nil, fmt.Errorf("open wallet %s: %w", k.cfg.Name,
				err)
		}
		if len(k.cfg.PrivatePass) > 0 {
			if err := w.Unlock(k.cfg.PrivatePass, nil); err != nil {
				_ = k.loader.UnloadWallet()
				return nil, fmt.Errorf("unlock wallet %s: %w",
					k.cfg.Name, err)
			}
			w.Lock()
		}
		log.Infof("Opened wallet %s", k.cfg.Name)
		return w, nil
	}

	if len(k.cfg.PrivatePass) == 0 {
		return nil, fmt.Errorf("create wallet %s: %w", k.cfg.Name,
			ErrNoPrivatePass)
	}

	seed := k.cfg.Seed
	if seed == nil {
		seed, err = hdkeychain.GenerateSeed(
			hdkeychain.RecommendedSeedLen,
		)
		if err != nil {
			return nil, err
		}
	}
	birthday := k.cfg.Birthday
	if birthday.IsZero() {
		birthday = time.Now()
	}

	w, err := k.loader.CreateNewWallet(
		k.cfg.PublicPass, k.cfg.PrivatePass, seed, birthday,
	)
	if err != nil {
		return nil, fmt.Errorf("create wallet %s: %w", k.cfg.Name, err)
	}
	k.created = true
	log.Infof("Created wallet %s", k.cfg.Name)

	if k.cfg.OnCreate != nil {
		if err := k.cfg.OnCreate(seed); err != nil {
			_ = k.loader.UnloadWallet()
			return nil, err
		}
	}
	return w, nil
}

// startChain opens the light client's database and starts syncing headers
// and filters from the network.
func (k *Kit) startChain() error {
	db, err := walletdb.Create(
		"bdb", filepath.Join(k.dir, neutrinoDBName), true,
		k.cfg.DBTimeout, false,
	)
	if err != nil {
		return fmt.Errorf("unable to create neutrino db: %w", err)
	}

	cs, err := neutrino.NewChainService(neutrino.Config{
		DataDir:      k.dir,
		Database:     db,
		ChainParams:  *k.cfg.NetParams,
		ConnectPeers: k.cfg.ConnectPeers,
		AddPeers:     k.cfg.AddPeers,
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("couldn't create neutrino chain service: %w",
			err)
	}

	client := chain.NewNeutrinoClient(k.cfg.NetParams, cs)
	if err := client.Start(); err != nil {
		_ = cs.Stop()
		db.Close()
		return fmt.Errorf("couldn't start neutrino client: %w", err)
	}

	k.spvDB = db
	k.chainSvc = cs
	k.chainClient = client
	return nil
}

// notificationHandler forwards incoming coins until the kit stops.
func (k *Kit) notificationHandler(tracker *receiptTracker) {
	defer k.wg.Done()

	client := k.wallet.NtfnServer.TransactionNotifications()
	defer client.Done()

	for {
		select {
		case n, ok := <-client.C:
			if !ok {
				return
			}
			log.Tracef("Transaction notification for %s: %v",
				k.cfg.Name, newLogClosure(func() string {
					return spew.Sdump(n)
				}))

			events, err := tracker.process(n)
			if err != nil {
				log.Errorf("Wallet %s: %v", k.cfg.Name, err)
			}
			for _, e := range events {
				select {
				case k.coins <- e:
				case <-k.quit:
					return
				}
			}

		case <-k.quit:
			return
		}
	}
}

// CoinsReceived returns the channel carrying incoming coin events.
func (k *Kit) CoinsReceived() <-chan *CoinsReceived {
	return k.coins
}

func (k *Kit) running() bool {
	return atomic.LoadInt32(&k.started) == 1 &&
		atomic.LoadInt32(&k.stopped) == 0 && k.wallet != nil
}

// Balance returns the wallet balance with at least MinConf confirmations.
func (k *Kit) Balance() (btcutil.Amount, error) {
	if !k.running() {
		return 0, ErrNotStarted
	}
	return k.wallet.CalculateBalance(k.cfg.MinConf)
}

// CurrentAddress returns the current native segwit receive address of the
// default account.
func (k *Kit) CurrentAddress() (btcutil.Address, error) {
	if !k.running() {
		return nil, ErrNotStarted
	}
	return k.wallet.CurrentAddress(
		waddrmgr.DefaultAccountNum, waddrmgr.KeyScopeBIP0084,
	)
}

// BestHeight returns the height of the best header known to the light
// client, or -1 when it is unavailable.
func (k *Kit) BestHeight() int32 {
	if !k.running() || k.chainSvc == nil {
		return -1
	}
	best, err := k.chainSvc.BestBlock()
	if err != nil {
		log.Debugf("Wallet %s best block: %v", k.cfg.Name, err)
		return -1
	}
	return best.Height
}

// WalletHeight returns the height the wallet has processed up to.
func (k *Kit) WalletHeight() int32 {
	if !k.running() {
		return -1
	}
	return k.wallet.Manager.SyncedTo().Height
}

// ConnectedPeers returns the number of peers the light client is connected
// to.
func (k *Kit) ConnectedPeers() int32 {
	if !k.running() || k.chainSvc == nil {
		return 0
	}
	return k.chainSvc.ConnectedCount()
}

// Synced reports whether the wallet has caught up with the chain.
func (k *Kit) Synced() bool {
	return k.running() && k.wallet.ChainSynced()
}

// SendTo pays amount to addr at feePerKb, unlocking the wallet for the
// duration of the call.  The transaction is published before SendTo returns.
func (k *Kit) SendTo(ctx context.Context, addr btcutil.Address,
	amount, feePerKb btcutil.Amount) (*wire.MsgTx, error) {

	if !k.running() {
		return nil, ErrNotStarted
	}
	if len(k.cfg.PrivatePass) == 0 {
		return nil, ErrNoPrivatePass
	}
	if !addr.IsForNet(k.cfg.NetParams) {
		return nil, fmt.Errorf("address %v is not for %s", addr,
			k.cfg.NetParams.Name)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.sendMtx.Lock()
	defer k.sendMtx.Unlock()

	lock := make(chan time.Time, 1)
	if err := k.wallet.Unlock(k.cfg.PrivatePass, lock); err != nil {
		return nil, fmt.Errorf("unlock wallet %s: %w", k.cfg.Name, err)
	}
	defer func() {
		lock <- time.Time{}
	}()

	tx, err := k.wallet.SendOutputs(
		[]*wire.TxOut{wire.NewTxOut(int64(amount), pkScript)},
		&waddrmgr.KeyScopeBIP0084, waddrmgr.DefaultAccountNum,
		k.cfg.MinConf, feePerKb, wallet.CoinSelectionLargest, "",
	)
	if err != nil {
		var inputErr txauthor.InputSourceError
		if errors.As(err, &inputErr) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
		return nil, err
	}

	log.Infof("Wallet %s published %v paying %v to %v", k.cfg.Name,
		tx.TxHash(), amount, addr)
	return tx, nil
}

// release closes whatever Start opened.
func (k *Kit) release() {
	if k.wallet != nil {
		if err := k.loader.UnloadWallet(); err != nil &&
			!errors.Is(err, wallet.ErrNotLoaded) {

			log.Errorf("Failed to close wallet %s: %v", k.cfg.Name,
				err)
		}
		k.wallet = nil
	}
	if k.chainClient != nil {
		k.chainClient.Stop()
		k.chainClient.WaitForShutdown()
		k.chainClient = nil
	}
	if k.chainSvc != nil {
		if err := k.chainSvc.Stop(); err != nil {
			log.Errorf("Failed to stop chain service for %s: %v",
				k.cfg.Name, err)
		}
		k.chainSvc = nil
	}
	if k.spvDB != nil {
		if err := k.spvDB.Close(); err != nil {
			log.Errorf("Failed to close neutrino db for %s: %v",
				k.cfg.Name, err)
		}
		k.spvDB = nil
	}
}

// Stop shuts down the wallet and light client.  It is safe to call Stop more
// than once, and on a kit that never started.
func (k *Kit) Stop() {
	if !atomic.CompareAndSwapInt32(&k.stopped, 0, 1) {
		return
	}
	close(k.quit)
	k.wg.Wait()

	if atomic.LoadInt32(&k.started) == 0 {
		return
	}

	k.release()
	log.Infof("Wallet %s stopped", k.cfg.Name)
}
