package lending

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"nftlend/crypto"
)

// Seed tags namespace the derived record addresses per entity kind.
var (
	poolSeed    = []byte("LendPool")
	listingSeed = []byte("LendListing")
	bidSeed     = []byte("LendBid")
	loanSeed    = []byte("LendLoan")
)

// LoanID identifies one credit extension between a borrower and a lender
// against one collateral class. IDs are caller-chosen 32-byte values; the
// derived loan address binds the ID to the participant tuple.
type LoanID [32]byte

func (id LoanID) String() string { return hex.EncodeToString(id[:]) }

// ParseLoanID decodes a 64-character hex string into a LoanID.
func ParseLoanID(s string) (LoanID, error) {
	var id LoanID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("lending: invalid loan id: %w", err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("lending: loan id must be %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// deriver is the subset of the record ledger used for address computation.
type deriver interface {
	Derive(seeds ...[]byte) (crypto.Address, uint8)
}

// PoolAddress returns the canonical singleton pool address.
func PoolAddress(d deriver) (crypto.Address, uint8) {
	return d.Derive(poolSeed)
}

// ListingAddress returns the canonical address of the (mint, owner) listing.
func ListingAddress(d deriver, mint, owner crypto.Address) (crypto.Address, uint8) {
	return d.Derive(listingSeed, mint.Bytes(), owner.Bytes())
}

// BidAddress returns the canonical address of the (mint, lender) bid.
func BidAddress(d deriver, mint, lender crypto.Address) (crypto.Address, uint8) {
	return d.Derive(bidSeed, mint.Bytes(), lender.Bytes())
}

// LoanAddress returns the canonical address of the
// (mint, borrower, lender, loan id) record.
func LoanAddress(d deriver, mint, borrower, lender crypto.Address, id LoanID) (crypto.Address, uint8) {
	return d.Derive(loanSeed, mint.Bytes(), borrower.Bytes(), lender.Bytes(), id[:])
}

// Wire forms keep the RLP encoding free of unexported address internals.
// RLP has no signed integers, so second-resolution timestamps and durations
// travel as uint64.

type poolWire struct {
	Bump             uint8
	Owner            []byte
	RewardMint       []byte
	CurrencyMint     []byte
	SettlementMint   []byte
	DepositIncentive uint64
	MaxLoanDuration  uint64
	ServiceFeeRate   uint64
	InterestRate     uint64
	TotalNumLoans    uint64
}

type listingWire struct {
	Count     uint64
	Available uint64
}

type bidWire struct {
	Price uint64
	Qty   uint64
}

type loanWire struct {
	Cash      uint64
	StartedAt uint64
	ExpiredAt uint64
	State     uint8
}

func encodePool(p *Pool) ([]byte, error) {
	return rlp.EncodeToBytes(&poolWire{
		Bump:             p.Bump,
		Owner:            p.Owner.Bytes(),
		RewardMint:       p.RewardMint.Bytes(),
		CurrencyMint:     p.CurrencyMint.Bytes(),
		SettlementMint:   p.SettlementMint.Bytes(),
		DepositIncentive: p.DepositIncentive,
		MaxLoanDuration:  uint64(p.MaxLoanDuration),
		ServiceFeeRate:   p.ServiceFeeRate,
		InterestRate:     p.InterestRate,
		TotalNumLoans:    p.TotalNumLoans,
	})
}

func decodePool(data []byte) (*Pool, error) {
	wire := new(poolWire)
	if err := rlp.DecodeBytes(data, wire); err != nil {
		return nil, fmt.Errorf("lending: decode pool: %w", err)
	}
	return &Pool{
		Bump:             wire.Bump,
		Owner:            crypto.NewAddress(crypto.WalletPrefix, wire.Owner),
		RewardMint:       crypto.NewAddress(crypto.MintPrefix, wire.RewardMint),
		CurrencyMint:     crypto.NewAddress(crypto.MintPrefix, wire.CurrencyMint),
		SettlementMint:   crypto.NewAddress(crypto.MintPrefix, wire.SettlementMint),
		DepositIncentive: wire.DepositIncentive,
		MaxLoanDuration:  int64(wire.MaxLoanDuration),
		ServiceFeeRate:   wire.ServiceFeeRate,
		InterestRate:     wire.InterestRate,
		TotalNumLoans:    wire.TotalNumLoans,
	}, nil
}

func encodeListing(l *Listing) ([]byte, error) {
	return rlp.EncodeToBytes(&listingWire{Count: l.Count, Available: l.Available})
}

func decodeListing(data []byte) (*Listing, error) {
	wire := new(listingWire)
	if err := rlp.DecodeBytes(data, wire); err != nil {
		return nil, fmt.Errorf("lending: decode listing: %w", err)
	}
	return &Listing{Count: wire.Count, Available: wire.Available}, nil
}

func encodeBid(b *Bid) ([]byte, error) {
	return rlp.EncodeToBytes(&bidWire{Price: b.Price, Qty: b.Qty})
}

func decodeBid(data []byte) (*Bid, error) {
	wire := new(bidWire)
	if err := rlp.DecodeBytes(data, wire); err != nil {
		return nil, fmt.Errorf("lending: decode bid: %w", err)
	}
	return &Bid{Price: wire.Price, Qty: wire.Qty}, nil
}

func encodeLoan(l *Loan) ([]byte, error) {
	return rlp.EncodeToBytes(&loanWire{
		Cash:      l.Cash,
		StartedAt: uint64(l.StartedAt),
		ExpiredAt: uint64(l.ExpiredAt),
		State:     uint8(l.State),
	})
}

func decodeLoan(data []byte) (*Loan, error) {
	wire := new(loanWire)
	if err := rlp.DecodeBytes(data, wire); err != nil {
		return nil, fmt.Errorf("lending: decode loan: %w", err)
	}
	state := LoanState(wire.State)
	if !state.Valid() {
		return nil, fmt.Errorf("lending: invalid loan state %d", wire.State)
	}
	return &Loan{
		Cash:      wire.Cash,
		StartedAt: int64(wire.StartedAt),
		ExpiredAt: int64(wire.ExpiredAt),
		State:     state,
	}, nil
}
