// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transfer

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// EstimateFee estimates the fee of a transfer spending one native segwit
// input to an output with a script of destScriptSize bytes plus a native
// segwit change output.
func EstimateFee(feePerKb btcutil.Amount, destScriptSize int) btcutil.Amount {
	out := &wire.TxOut{PkScript: make([]byte, destScriptSize)}
	vsize := txsizes.EstimateVirtualSize(
		0, 0, 1, 0, []*wire.TxOut{out}, txsizes.P2WPKHPkScriptSize,
	)
	return txrules.FeeForSerializeSize(feePerKb, vsize)
}
