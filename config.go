// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/etfbank/etfbank/internal/cfgutil"
	"github.com/etfbank/etfbank/kit"
	"github.com/etfbank/etfbank/monitor"
	"github.com/etfbank/etfbank/netparams"
	"github.com/etfbank/etfbank/transfer"
	"github.com/etfbank/etfbank/txlog"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "etfbank.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "etfbank.log"
	defaultWalletName     = "bitcoin-wallet"
	defaultETFWalletName  = "bitcoin-wallet-ETF"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("etfbank", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile    *cfgutil.PathFlag `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir    *cfgutil.PathFlag `short:"A" long:"appdata" description:"Application data directory for wallets, light client data and transfer state"`
	MainNet       bool              `long:"mainnet" description:"Use the main Bitcoin network (default testnet3)"`
	RegressionNet bool              `long:"regtest" description:"Use the regression test network"`
	SimNet        bool              `long:"simnet" description:"Use the simulation test network"`
	SigNet        bool              `long:"signet" description:"Use the signet test network"`
	DebugLevel    string            `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir        string            `long:"logdir" description:"Directory to log output."`

	// Peer options
	ConnectPeers []string `long:"connect" description:"Connect only to the specified peers at startup"`
	AddPeers     []string `short:"a" long:"addpeer" description:"Add a peer to connect with at startup"`

	// Wallet options
	WalletPass    string `long:"walletpass" default-mask:"-" description:"The public wallet password -- Only required if the wallets were created with one"`
	PrivPass      string `long:"privpass" default-mask:"-" description:"The private passphrase of the primary wallet -- Prompted for when unset and stdin is a terminal"`
	ETFPrivPass   string `long:"etfprivpass" default-mask:"-" description:"The private passphrase of the ETF wallet -- Only needed to create it"`
	WalletName    string `long:"walletname" description:"Name of the primary wallet"`
	ETFWalletName string `long:"etfwalletname" description:"Name of the ETF wallet"`
	MinConf       int32  `long:"minconf" description:"Confirmations required before an output counts towards the balance"`

	// Monitor options
	StatusInterval time.Duration `long:"statusinterval" description:"Time between status reports"`
	RecentWindow   time.Duration `long:"recentwindow" description:"How long a received transaction stays in the recent transaction log"`

	// Transfer options
	TransferDivisor int64               `long:"transferdivisor" description:"Transfer balance/N of the primary wallet to the ETF wallet"`
	FeeRate         *cfgutil.AmountFlag `long:"feerate" description:"Fee rate of the transfer transaction in BTC/kB (or sat/kB with a sat suffix)"`
	NoTransfer      bool                `long:"notransfer" description:"Only report status, never transfer funds"`

	// netDir is the per-network directory below AppDataDir.
	netDir string
}

// errShowSubsystems is returned by loadConfig when the supported logging
// subsystems were printed and the application should exit.
var errShowSubsystems = errors.New("subsystems listed")

func defaultConfig() config {
	return config{
		ConfigFile:      cfgutil.NewPathFlag(defaultConfigFile),
		AppDataDir:      cfgutil.NewPathFlag(defaultAppDataDir),
		DebugLevel:      defaultLogLevel,
		LogDir:          defaultLogDir,
		WalletPass:      wallet.InsecurePubPassphrase,
		WalletName:      defaultWalletName,
		ETFWalletName:   defaultETFWalletName,
		MinConf:         kit.DefaultMinConf,
		StatusInterval:  monitor.DefaultInterval,
		RecentWindow:    txlog.DefaultWindow,
		TransferDivisor: transfer.DefaultDivisor,
		FeeRate:         cfgutil.NewAmountFlag(txrules.DefaultRelayFeePerKb),
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in etfbank functioning properly without any config
// settings while still allowing the user to override settings with config files
// and command line options.  Command line options always take precedence.
func loadConfig(args []string) (*config, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or application data directory was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	// If an alternate data directory was specified, and paths with defaults
	// relative to the data dir are unchanged, modify each path to be
	// relative to the new data dir.
	appDataDir := preCfg.AppDataDir.Path()
	if preCfg.AppDataDir.IsSet() {
		preCfg.ConfigFile.SetDefault(filepath.Join(
			appDataDir, defaultConfigFilename,
		))
		cfg.LogDir = filepath.Join(appDataDir, defaultLogDirname)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFile := preCfg.ConfigFile.Path()
	err = flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("config file %s: %w", configFile,
				err)
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil && preCfg.ConfigFile.IsSet() {
		log.Warnf("%v", configFileError)
	}

	// Choose the active network params based on the selected network.
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	activeNet = &netparams.TestNet3Params
	if cfg.MainNet {
		activeNet = &netparams.MainNetParams
		numNets++
	}
	if cfg.RegressionNet {
		activeNet = &netparams.RegressionNetParams
		numNets++
	}
	if cfg.SimNet {
		activeNet = &netparams.SimNetParams
		numNets++
	}
	if cfg.SigNet {
		activeNet = &netparams.SigNetParams
		numNets++
	}
	if numNets > 1 {
		return nil, errors.New("the mainnet, regtest, simnet and " +
			"signet params can't be used together -- choose one")
	}

	cfg.netDir = filepath.Join(cfg.AppDataDir.Path(), activeNet.DirName())

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cfgutil.CleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, activeNet.DirName())

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		return nil, errShowSubsystems
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, err
	}

	switch {
	case cfg.WalletName == "" || cfg.ETFWalletName == "":
		return nil, errors.New("wallet names must not be empty")
	case cfg.WalletName == cfg.ETFWalletName:
		return nil, fmt.Errorf("the primary and ETF wallets must "+
			"differ, both are named %q", cfg.WalletName)
	case filepath.Base(cfg.WalletName) != cfg.WalletName ||
		filepath.Base(cfg.ETFWalletName) != cfg.ETFWalletName:

		return nil, errors.New("wallet names must not contain path " +
			"separators")
	case cfg.MinConf < 0:
		return nil, fmt.Errorf("invalid minconf %d", cfg.MinConf)
	case cfg.StatusInterval <= 0:
		return nil, fmt.Errorf("invalid status interval %v",
			cfg.StatusInterval)
	case cfg.RecentWindow <= 0:
		return nil, fmt.Errorf("invalid recent window %v",
			cfg.RecentWindow)
	case cfg.TransferDivisor < 1:
		return nil, fmt.Errorf("invalid transfer divisor %d",
			cfg.TransferDivisor)
	case cfg.FeeRate.Amount <= 0:
		return nil, fmt.Errorf("invalid fee rate %v", cfg.FeeRate)
	}

	// Add default ports to the peer addresses and remove duplicates.
	cfg.ConnectPeers, err = cfgutil.NormalizeAddresses(
		cfg.ConnectPeers, activeNet.PeerPort,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid connect address: %w", err)
	}
	cfg.AddPeers, err = cfgutil.NormalizeAddresses(
		cfg.AddPeers, activeNet.PeerPort,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid addpeer address: %w", err)
	}

	return &cfg, nil
}
