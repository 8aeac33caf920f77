// Package receipt keeps a local journal of completed marketplace flows.
//
// Each receipt is stored under its txid and indexed by creation time so
// List can walk the journal newest first.
package receipt

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// FileName is the journal's file name inside the data directory.
const FileName = "receipts.db"

var (
	bucketReceipts     = []byte("receipts")
	bucketReceiptsTime = []byte("receipts_time")
)

// Receipt records one broadcast (or finalized) transaction.
type Receipt struct {
	TxID         string
	Kind         string // "payment", "listing" or "mint"
	Amount       uint64
	Fee          uint64
	Counterparty string
	CreatedAt    time.Time
	RawTx        []byte
	Broadcast    bool
}

// Journal persists receipts in bbolt.
type Journal struct {
	db *bbolt.DB
}

// Open opens or creates the journal at dbPath.
// The parent directory is created if it does not exist.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("receipt: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("receipt: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketReceipts, bucketReceiptsTime} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("receipt: create buckets: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

// Put stores r. CreatedAt is set to now when zero.
func (j *Journal) Put(r *Receipt) error {
	if r == nil {
		return fmt.Errorf("%w: receipt", ErrNilParam)
	}
	key, err := txidKey(r.TxID)
	if err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	data, err := encodeGob(r)
	if err != nil {
		return fmt.Errorf("receipt: encode: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(bucketReceipts)
		if rb.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicate, r.TxID)
		}
		if err := rb.Put(key, data); err != nil {
			return fmt.Errorf("receipt: put: %w", err)
		}
		if err := tx.Bucket(bucketReceiptsTime).Put(timeKey(r.CreatedAt, key), key); err != nil {
			return fmt.Errorf("receipt: put time index: %w", err)
		}
		return nil
	})
}

// Get returns the receipt stored for txid.
func (j *Journal) Get(txid string) (*Receipt, error) {
	key, err := txidKey(txid)
	if err != nil {
		return nil, err
	}

	var r Receipt
	err = j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketReceipts).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, txid)
		}
		if err := decodeGob(data, &r); err != nil {
			return fmt.Errorf("receipt: decode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns receipts newest first. An empty kind matches every kind;
// limit <= 0 means no limit.
func (j *Journal) List(kind string, limit int) ([]*Receipt, error) {
	var out []*Receipt
	err := j.db.View(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(bucketReceipts)
		c := tx.Bucket(bucketReceiptsTime).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			data := rb.Get(v)
			if data == nil {
				continue
			}
			var r Receipt
			if err := decodeGob(data, &r); err != nil {
				return fmt.Errorf("receipt: decode %x: %w", v, err)
			}
			if kind != "" && r.Kind != kind {
				continue
			}
			out = append(out, &r)
			if limit > 0 && len(out) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored receipts.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketReceipts).Stats().KeyN
		return nil
	})
	return n, err
}

func txidKey(txid string) ([]byte, error) {
	key, err := hex.DecodeString(txid)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTxID, txid)
	}
	return key, nil
}

// timeKey orders the index by creation time, with the txid breaking ties.
func timeKey(t time.Time, txid []byte) []byte {
	k := make([]byte, 8, 8+len(txid))
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return append(k, txid...)
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
