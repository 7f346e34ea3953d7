// Package ledger implements the derived-record store backing the lending
// protocol: deterministic record addresses computed from seed tuples, an
// allocate-once discipline, and raw record I/O over a key-value database.
package ledger

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"nftlend/crypto"
	"nftlend/storage"
)

var (
	// ErrAlreadyAllocated is returned by Allocate when a record already
	// exists at the target address. Callers rely on it to enforce
	// create-at-most-once invariants.
	ErrAlreadyAllocated = errors.New("ledger: record already allocated")
	// ErrNotAllocated is returned by Write when the target record was never
	// allocated.
	ErrNotAllocated = errors.New("ledger: record not allocated")
)

var recordPrefix = []byte("record:")

// Record is the stored envelope for a derived account: the wallet that funded
// the allocation and the serialized payload.
type Record struct {
	Owner []byte
	Data  []byte
}

// Ledger provides derived-address records over a key-value database.
type Ledger struct {
	db storage.Database
}

// New creates a ledger over the provided database.
func New(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// Derive computes the canonical address for a seed tuple. Seeds are
// length-prefixed before hashing so that ("ab","c") and ("a","bc") cannot
// collide. The returned disambiguator byte is folded into a second hash pass;
// Verify reproduces the same two-pass computation.
func (l *Ledger) Derive(seeds ...[]byte) (crypto.Address, uint8) {
	base := sumSeeds(seeds...)
	bump := base[len(base)-1]
	return finalAddress(base, bump), bump
}

// Verify reports whether addr matches the canonical derivation for the seed
// tuple and disambiguator.
func (l *Ledger) Verify(addr crypto.Address, bump uint8, seeds ...[]byte) bool {
	base := sumSeeds(seeds...)
	if bump != base[len(base)-1] {
		return false
	}
	return finalAddress(base, bump).Equal(addr)
}

// Allocate creates an empty record of the given size at addr, owned by the
// funding wallet. It fails with ErrAlreadyAllocated when the address is
// already in use.
func (l *Ledger) Allocate(owner, addr crypto.Address, size int) error {
	key := recordKey(addr)
	exists, err := l.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyAllocated
	}
	rec := Record{Owner: owner.Bytes(), Data: make([]byte, size)}
	encoded, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("ledger: encode record: %w", err)
	}
	return l.db.Put(key, encoded)
}

// Allocated reports whether a record exists at addr.
func (l *Ledger) Allocated(addr crypto.Address) (bool, error) {
	return l.db.Has(recordKey(addr))
}

// Read returns the record payload at addr. The second return value is false
// when the record was never allocated.
func (l *Ledger) Read(addr crypto.Address) ([]byte, bool, error) {
	encoded, err := l.db.Get(recordKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	rec := new(Record)
	if err := rlp.DecodeBytes(encoded, rec); err != nil {
		return nil, false, fmt.Errorf("ledger: decode record: %w", err)
	}
	return rec.Data, true, nil
}

// Owner returns the wallet that funded the allocation at addr.
func (l *Ledger) Owner(addr crypto.Address) (crypto.Address, bool, error) {
	encoded, err := l.db.Get(recordKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return crypto.Address{}, false, nil
		}
		return crypto.Address{}, false, err
	}
	rec := new(Record)
	if err := rlp.DecodeBytes(encoded, rec); err != nil {
		return crypto.Address{}, false, fmt.Errorf("ledger: decode record: %w", err)
	}
	if len(rec.Owner) != crypto.AddressLength {
		return crypto.Address{}, false, fmt.Errorf("ledger: malformed owner in record")
	}
	return crypto.NewAddress(crypto.WalletPrefix, rec.Owner), true, nil
}

// Write replaces the payload of a previously allocated record.
func (l *Ledger) Write(addr crypto.Address, data []byte) error {
	key := recordKey(addr)
	encoded, err := l.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return ErrNotAllocated
		}
		return err
	}
	rec := new(Record)
	if err := rlp.DecodeBytes(encoded, rec); err != nil {
		return fmt.Errorf("ledger: decode record: %w", err)
	}
	rec.Data = data
	updated, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return fmt.Errorf("ledger: encode record: %w", err)
	}
	return l.db.Put(key, updated)
}

func sumSeeds(seeds ...[]byte) [32]byte {
	h := blake3.New(32, nil)
	var lenBuf [4]byte
	for _, seed := range seeds {
		lenBuf[0] = byte(len(seed) >> 24)
		lenBuf[1] = byte(len(seed) >> 16)
		lenBuf[2] = byte(len(seed) >> 8)
		lenBuf[3] = byte(len(seed))
		h.Write(lenBuf[:])
		h.Write(seed)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func finalAddress(base [32]byte, bump uint8) crypto.Address {
	final := blake3.Sum256(append(base[:], bump))
	return crypto.NewAddress(crypto.RecordPrefix, final[:crypto.AddressLength])
}

func recordKey(addr crypto.Address) []byte {
	buf := make([]byte, len(recordPrefix)+crypto.AddressLength)
	copy(buf, recordPrefix)
	copy(buf[len(recordPrefix):], addr.Bytes())
	return ethcrypto.Keccak256(buf)
}
