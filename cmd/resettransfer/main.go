// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet"
	"github.com/etfbank/etfbank/netparams"
	"github.com/etfbank/etfbank/transfer"
	"github.com/jessevdk/go-flags"
)

var datadir = btcutil.AppDataDir("etfbank", false)

// Flags.
var opts = struct {
	Force   bool   `short:"f" description:"Reset without prompt"`
	Network string `long:"network" description:"Network whose transfer state is reset"`
	DbPath  string `long:"db" description:"Path to the transfer state database (overrides --network)"`
}{
	Network: netparams.TestNet3Params.Name,
}

func init() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}
}

func yes(s string) bool {
	switch s {
	case "y", "Y", "yes", "Yes":
		return true
	default:
		return false
	}
}

func no(s string) bool {
	switch s {
	case "n", "N", "no", "No":
		return true
	default:
		return false
	}
}

func dbPath() (string, error) {
	if opts.DbPath != "" {
		return opts.DbPath, nil
	}
	params, err := netparams.ByName(opts.Network)
	if err != nil {
		return "", err
	}
	return filepath.Join(datadir, params.DirName(),
		transfer.StoreFilename), nil
}

func main() {
	os.Exit(mainInt())
}

func mainInt() int {
	path, err := dbPath()
	if err != nil {
		fmt.Println(err)
		return 1
	}
	fmt.Println("Database path:", path)
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Println("Database file does not exist")
		return 1
	}

	store, err := transfer.OpenStore(path, wallet.DefaultDBTimeout)
	if err != nil {
		fmt.Println("Failed to open database:", err)
		return 1
	}
	defer store.Close()

	last, err := store.Load()
	if err != nil {
		fmt.Println("Failed to read transfer state:", err)
		return 1
	}
	if last.IsNone() {
		fmt.Println("No transfer has been attempted")
		return 0
	}
	last.WhenSome(func(r transfer.Receipt) {
		fmt.Printf("Transfer of %v attempted at %v: %v", r.Amount,
			r.Time, r.Status)
		if r.Status == transfer.StatusSent {
			fmt.Printf(" (%v)", r.TxHash)
		}
		fmt.Println()
	})

	for !opts.Force {
		fmt.Print("Forget this transfer and transfer again on the " +
			"next run? [y/N] ")

		scanner := bufio.NewScanner(bufio.NewReader(os.Stdin))
		if !scanner.Scan() {
			// Exit on EOF.
			return 0
		}
		err := scanner.Err()
		if err != nil {
			fmt.Println()
			fmt.Println(err)
			return 1
		}
		resp := scanner.Text()
		if yes(resp) {
			break
		}
		if no(resp) || resp == "" {
			return 0
		}

		fmt.Println("Enter yes or no.")
	}

	if _, err := store.Reset(); err != nil {
		fmt.Println("Failed to reset transfer state:", err)
		return 1
	}
	fmt.Println("Transfer state reset")
	return 0
}
