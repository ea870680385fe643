// Copyright (c) 2013-2014 The btcsuite developers
// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import "github.com/etfbank/etfbank/netparams"

var activeNet = &netparams.TestNet3Params
