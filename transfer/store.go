// Copyright (c) 2024 The etfbank developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

// StoreFilename is the default name of the transfer state database.
const StoreFilename = "etfbank.db"

var (
	// transferBucket is the top-level bucket holding transfer state.
	transferBucket = []byte("etf-transfer")

	// receiptKey stores the TLV encoded receipt of the one-shot
	// transfer.
	receiptKey = []byte("receipt")
)

// TLV record types of an encoded Receipt.
const (
	typeTxHash tlv.Type = 0
	typeAmount tlv.Type = 2
	typeTime   tlv.Type = 4
	typeStatus tlv.Type = 6
)

// Status is the outcome of a transfer attempt.
type Status uint8

const (
	// StatusSent means the transaction was published.
	StatusSent Status = 0

	// StatusFailed means building or publishing the transaction failed.
	StatusFailed Status = 1
)

// String returns the human readable status.
func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Receipt records the one-shot transfer attempt.
type Receipt struct {
	// TxHash is the hash of the published transaction.  It is zero when
	// the attempt failed.
	TxHash chainhash.Hash

	// Amount is the amount the attempt tried to send.
	Amount btcutil.Amount

	// Time is when the attempt was made.
	Time time.Time

	// Status is the outcome of the attempt.
	Status Status
}

func (r *Receipt) encode() ([]byte, error) {
	var (
		txHash [32]byte = r.TxHash
		amount          = uint64(r.Amount)
		unix            = uint64(r.Time.Unix())
		status          = uint8(r.Status)
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeTxHash, &txHash),
		tlv.MakePrimitiveRecord(typeAmount, &amount),
		tlv.MakePrimitiveRecord(typeTime, &unix),
		tlv.MakePrimitiveRecord(typeStatus, &status),
	)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decodeReceipt(b []byte) (Receipt, error) {
	var (
		txHash [32]byte
		amount uint64
		unix   uint64
		status uint8
	)
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeTxHash, &txHash),
		tlv.MakePrimitiveRecord(typeAmount, &amount),
		tlv.MakePrimitiveRecord(typeTime, &unix),
		tlv.MakePrimitiveRecord(typeStatus, &status),
	)
	if err != nil {
		return Receipt{}, err
	}
	if err := stream.Decode(bytes.NewReader(b)); err != nil {
		return Receipt{}, err
	}

	return Receipt{
		TxHash: txHash,
		Amount: btcutil.Amount(amount),
		Time:   time.Unix(int64(unix), 0),
		Status: Status(status),
	}, nil
}

// Store persists the transfer receipt so the one-shot transfer survives
// restarts.
type Store struct {
	db walletdb.DB
}

// OpenStore opens the store at path, creating it when missing.
func OpenStore(path string, timeout time.Duration) (*Store, error) {
	var (
		db  walletdb.DB
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		db, err = walletdb.Open("bdb", path, true, timeout, false)
	} else if errors.Is(statErr, os.ErrNotExist) {
		db, err = walletdb.Create("bdb", path, true, timeout, false)
	} else {
		return nil, statErr
	}
	if err != nil {
		return nil, fmt.Errorf("open transfer store: %w", err)
	}

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(transferBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Load returns the stored receipt, if any.
func (s *Store) Load() (fn.Option[Receipt], error) {
	receipt := fn.None[Receipt]()
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket := tx.ReadBucket(transferBucket)
		if bucket == nil {
			return nil
		}
		v := bucket.Get(receiptKey)
		if v == nil {
			return nil
		}
		r, err := decodeReceipt(v)
		if err != nil {
			return fmt.Errorf("corrupt transfer receipt: %w", err)
		}
		receipt = fn.Some(r)
		return nil
	})
	return receipt, err
}

// Save stores r, replacing any earlier receipt.
func (s *Store) Save(r Receipt) error {
	v, err := r.encode()
	if err != nil {
		return err
	}
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(transferBucket).Put(receiptKey, v)
	})
}

// Reset removes the stored receipt so the next run attempts the transfer
// again.  It reports whether a receipt was removed.
func (s *Store) Reset() (bool, error) {
	var removed bool
	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(transferBucket)
		if bucket.Get(receiptKey) == nil {
			return nil
		}
		removed = true
		return bucket.Delete(receiptKey)
	})
	return removed, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
