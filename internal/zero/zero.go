// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero clears passphrase material from memory.
package zero

// Bytes sets all bytes in the passed slice to zero.
func Bytes(b []byte) {
	clear(b)
}

// All zeroes every passed slice.
func All(bs ...[]byte) {
	for _, b := range bs {
		Bytes(b)
	}
}
