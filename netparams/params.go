// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params

	// PeerPort is the default port used when a peer given on the command
	// line omits one.
	PeerPort string
}

// MainNetParams contains parameters specific to running etfbank on the main
// network (wire.MainNet).
var MainNetParams = Params{
	Params:   &chaincfg.MainNetParams,
	PeerPort: "8333",
}

// TestNet3Params contains parameters specific to running etfbank on the test
// network (version 3) (wire.TestNet3).
var TestNet3Params = Params{
	Params:   &chaincfg.TestNet3Params,
	PeerPort: "18333",
}

// RegressionNetParams contains parameters specific to the regression test
// network (wire.TestNet).
var RegressionNetParams = Params{
	Params:   &chaincfg.RegressionNetParams,
	PeerPort: "18444",
}

// SimNetParams contains parameters specific to the simulation test network
// (wire.SimNet).
var SimNetParams = Params{
	Params:   &chaincfg.SimNetParams,
	PeerPort: "18555",
}

// SigNetParams contains parameters specific to the default signet network
// (wire.SigNet).
var SigNetParams = Params{
	Params:   &chaincfg.SigNetParams,
	PeerPort: "38333",
}

// DirName returns the name of the per-network directory holding the wallet
// and chain files.  Testnet3 keeps the historical "testnet" name.
func (p *Params) DirName() string {
	if p.Net == wire.TestNet3 {
		return "testnet"
	}
	return p.Name
}

// ByName looks up the parameter group for the network with the given
// chaincfg name.
func ByName(name string) (*Params, error) {
	for _, p := range []*Params{
		&MainNetParams, &TestNet3Params, &RegressionNetParams,
		&SimNetParams, &SigNetParams,
	} {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown network %q", name)
}
