// Package token implements the asset-transfer collaborator consumed by the
// lending engine: mint registry, per-(mint,holder) balances, and delegated
// transfer authority. Amounts are uint64 base units; NFT class mints carry
// zero decimals so one unit is one asset.
package token

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftlend/crypto"
	"nftlend/storage"
)

var (
	ErrMintUnknown           = errors.New("token: mint not registered")
	ErrMintExists            = errors.New("token: mint already registered")
	ErrAccountUnknown        = errors.New("token: holder account not found")
	ErrInsufficientFunds     = errors.New("token: insufficient balance")
	ErrNotAuthorized         = errors.New("token: authority cannot move these funds")
	ErrInsufficientAllowance = errors.New("token: delegated allowance exceeded")
	ErrSupplyOverflow        = errors.New("token: mint supply overflow")
	ErrNotMintAuthority      = errors.New("token: not the mint authority")
)

var (
	mintPrefix    = []byte("token/mint:")
	accountPrefix = []byte("token/acct:")
)

// Mint describes an asset class. Supply is the total number of base units
// ever issued and still outstanding.
type Mint struct {
	Decimals  uint8
	Supply    uint64
	Authority []byte
}

// Account is a holder's position in one mint, including any outstanding
// delegation. A zero-length Delegate means no delegation is in place.
type Account struct {
	Amount          uint64
	Delegate        []byte
	DelegatedAmount uint64
}

// Ledger provides balances and delegated-transfer semantics over a key-value
// database.
type Ledger struct {
	db storage.Database
}

// New creates a token ledger over the provided database.
func New(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// RegisterMint records a new asset class with the given decimals and issuing
// authority.
func (l *Ledger) RegisterMint(mint, authority crypto.Address, decimals uint8) error {
	key := mintKey(mint)
	exists, err := l.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return ErrMintExists
	}
	return l.putMint(mint, &Mint{Decimals: decimals, Authority: authority.Bytes()})
}

// MintInfo returns the registered mint metadata.
func (l *Ledger) MintInfo(mint crypto.Address) (*Mint, error) {
	return l.getMint(mint)
}

// Supply returns the outstanding base-unit supply of a mint.
func (l *Ledger) Supply(mint crypto.Address) (uint64, error) {
	m, err := l.getMint(mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

// Decimals returns the registered decimals of a mint.
func (l *Ledger) Decimals(mint crypto.Address) (uint8, error) {
	m, err := l.getMint(mint)
	if err != nil {
		return 0, err
	}
	return m.Decimals, nil
}

// MintTo issues amount base units to the recipient. Only the mint authority
// may issue.
func (l *Ledger) MintTo(mint, authority, to crypto.Address, amount uint64) error {
	m, err := l.getMint(mint)
	if err != nil {
		return err
	}
	if !crypto.NewAddress(crypto.WalletPrefix, m.Authority).Equal(authority) {
		return ErrNotMintAuthority
	}
	if m.Supply+amount < m.Supply {
		return ErrSupplyOverflow
	}
	acc, err := l.ensureAccount(mint, to)
	if err != nil {
		return err
	}
	acc.Amount += amount
	if err := l.putAccount(mint, to, acc); err != nil {
		return err
	}
	m.Supply += amount
	return l.putMint(mint, m)
}

// EnsureAccount lazily creates a zeroed holder account for (mint, owner).
// Existing accounts are left untouched.
func (l *Ledger) EnsureAccount(mint, owner crypto.Address) error {
	if _, err := l.getMint(mint); err != nil {
		return err
	}
	acc, err := l.ensureAccount(mint, owner)
	if err != nil {
		return err
	}
	return l.putAccount(mint, owner, acc)
}

// BalanceOf returns the holder's balance; missing accounts read as zero.
func (l *Ledger) BalanceOf(mint, owner crypto.Address) (uint64, error) {
	acc, found, err := l.getAccount(mint, owner)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return acc.Amount, nil
}

// Delegation returns the holder's delegate and remaining allowance; a zero
// address means no delegation is outstanding.
func (l *Ledger) Delegation(mint, owner crypto.Address) (crypto.Address, uint64, error) {
	acc, found, err := l.getAccount(mint, owner)
	if err != nil {
		return crypto.Address{}, 0, err
	}
	if !found || len(acc.Delegate) != crypto.AddressLength {
		return crypto.Address{}, 0, nil
	}
	return crypto.NewAddress(crypto.RecordPrefix, acc.Delegate), acc.DelegatedAmount, nil
}

// Transfer moves amount base units from one holder to another. The authority
// must be the holder itself or the holder's approved delegate; delegated
// transfers consume allowance.
func (l *Ledger) Transfer(mint, from, to, authority crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromAcc, found, err := l.getAccount(mint, from)
	if err != nil {
		return err
	}
	if !found {
		return ErrAccountUnknown
	}
	delegated := !authority.Equal(from)
	if delegated {
		if len(fromAcc.Delegate) != crypto.AddressLength ||
			!crypto.NewAddress(crypto.RecordPrefix, fromAcc.Delegate).Equal(authority) {
			return ErrNotAuthorized
		}
		if fromAcc.DelegatedAmount < amount {
			return ErrInsufficientAllowance
		}
	}
	if fromAcc.Amount < amount {
		return ErrInsufficientFunds
	}
	toAcc, err := l.ensureAccount(mint, to)
	if err != nil {
		return err
	}
	fromAcc.Amount -= amount
	if delegated {
		fromAcc.DelegatedAmount -= amount
	}
	toAcc.Amount += amount
	if err := l.putAccount(mint, from, fromAcc); err != nil {
		return err
	}
	return l.putAccount(mint, to, toAcc)
}

// Delegate approves the delegate to move up to amount base units from the
// owner's account. A new approval replaces any previous one.
func (l *Ledger) Delegate(mint, owner, delegate crypto.Address, amount uint64) error {
	acc, err := l.ensureAccount(mint, owner)
	if err != nil {
		return err
	}
	acc.Delegate = delegate.Bytes()
	acc.DelegatedAmount = amount
	return l.putAccount(mint, owner, acc)
}

// Revoke clears any outstanding delegation on the owner's account.
func (l *Ledger) Revoke(mint, owner crypto.Address) error {
	acc, found, err := l.getAccount(mint, owner)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	acc.Delegate = nil
	acc.DelegatedAmount = 0
	return l.putAccount(mint, owner, acc)
}

func (l *Ledger) getMint(mint crypto.Address) (*Mint, error) {
	encoded, err := l.db.Get(mintKey(mint))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrMintUnknown
		}
		return nil, err
	}
	m := new(Mint)
	if err := rlp.DecodeBytes(encoded, m); err != nil {
		return nil, fmt.Errorf("token: decode mint: %w", err)
	}
	return m, nil
}

func (l *Ledger) putMint(mint crypto.Address, m *Mint) error {
	encoded, err := rlp.EncodeToBytes(m)
	if err != nil {
		return fmt.Errorf("token: encode mint: %w", err)
	}
	return l.db.Put(mintKey(mint), encoded)
}

func (l *Ledger) getAccount(mint, owner crypto.Address) (*Account, bool, error) {
	encoded, err := l.db.Get(accountKey(mint, owner))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	acc := new(Account)
	if err := rlp.DecodeBytes(encoded, acc); err != nil {
		return nil, false, fmt.Errorf("token: decode account: %w", err)
	}
	return acc, true, nil
}

func (l *Ledger) ensureAccount(mint, owner crypto.Address) (*Account, error) {
	acc, found, err := l.getAccount(mint, owner)
	if err != nil {
		return nil, err
	}
	if !found {
		acc = &Account{}
	}
	return acc, nil
}

func (l *Ledger) putAccount(mint, owner crypto.Address, acc *Account) error {
	encoded, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return fmt.Errorf("token: encode account: %w", err)
	}
	return l.db.Put(accountKey(mint, owner), encoded)
}

func mintKey(mint crypto.Address) []byte {
	buf := make([]byte, len(mintPrefix)+crypto.AddressLength)
	copy(buf, mintPrefix)
	copy(buf[len(mintPrefix):], mint.Bytes())
	return ethcrypto.Keccak256(buf)
}

func accountKey(mint, owner crypto.Address) []byte {
	buf := make([]byte, len(accountPrefix)+2*crypto.AddressLength+1)
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], mint.Bytes())
	buf[len(accountPrefix)+crypto.AddressLength] = ':'
	copy(buf[len(accountPrefix)+crypto.AddressLength+1:], owner.Bytes())
	return ethcrypto.Keccak256(buf)
}
