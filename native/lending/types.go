package lending

import "nftlend/crypto"

// LoanState tracks the lifecycle of a single credit extension. Active loans
// move to exactly one of Repaid or Liquidated; Finalized is optional
// bookkeeping recorded once the collateral physically leaves pool custody
// after repayment.
type LoanState uint8

const (
	LoanActive LoanState = iota
	LoanLiquidated
	LoanRepaid
	LoanFinalized
)

// Valid reports whether the state value is within the supported range.
func (s LoanState) Valid() bool {
	switch s {
	case LoanActive, LoanLiquidated, LoanRepaid, LoanFinalized:
		return true
	default:
		return false
	}
}

func (s LoanState) String() string {
	switch s {
	case LoanActive:
		return "active"
	case LoanLiquidated:
		return "liquidated"
	case LoanRepaid:
		return "repaid"
	case LoanFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Pool is the singleton configuration record for the protocol. Economic
// parameters are set at initialization (with optional owner overrides);
// afterwards only the loan counter advances.
type Pool struct {
	Bump           uint8
	Owner          crypto.Address
	RewardMint     crypto.Address
	CurrencyMint   crypto.Address
	SettlementMint crypto.Address
	// DepositIncentive is paid in reward base units per collateral unit
	// deposited.
	DepositIncentive uint64
	// MaxLoanDuration bounds a loan's repayment window, in seconds.
	MaxLoanDuration int64
	// ServiceFeeRate and InterestRate are in basis points (1/10000).
	ServiceFeeRate uint64
	InterestRate   uint64
	TotalNumLoans  uint64
}

// Listing records how many units of one collateral class an owner has
// deposited and how many are not currently locked under an active loan.
// Invariant: 0 <= Available <= Count.
type Listing struct {
	Count     uint64
	Available uint64
}

// Deposit adds n units to the listing. Counts are unbounded upward; the
// caller short-circuits n == 0.
func (l *Listing) Deposit(n uint64) {
	l.Count += n
	l.Available += n
}

// Withdraw removes n un-borrowed units from the listing entirely.
func (l *Listing) Withdraw(n uint64) error {
	if n > l.Available {
		return ErrNFTOverdrawn
	}
	l.Count -= n
	l.Available -= n
	return nil
}

// BorrowSuccess locks one unit under a new loan.
func (l *Listing) BorrowSuccess() error {
	if l.Available == 0 {
		return ErrEmptyNFTReserve
	}
	l.Available--
	return nil
}

// RepaySuccess releases one unit back to availability. Availability exceeding
// the total count means the books are corrupt, not a user error.
func (l *Listing) RepaySuccess() {
	l.Available++
	if l.Available > l.Count {
		panic("lending: listing availability exceeds count")
	}
}

// Liquidate removes n locked units from the total: the collateral leaves the
// pool permanently to the lender. Only units locked under a loan can be
// liquidated, so Available is untouched.
func (l *Listing) Liquidate(n uint64) error {
	if n > l.Count-l.Available {
		return ErrNFTOverdrawn
	}
	l.Count -= n
	return nil
}

// Bid is a lender's standing offer to fund loans against one collateral
// class: Price currency base units per unit of collateral, for up to Qty
// units.
type Bid struct {
	Price uint64
	Qty   uint64
}

// Set overwrites the bid; a new bid replaces, not accumulates.
func (b *Bid) Set(price, qty uint64) {
	b.Price = price
	b.Qty = qty
}

// Cancel zeroes the bid.
func (b *Bid) Cancel() {
	b.Price = 0
	b.Qty = 0
}

// Trade consumes n units of bid quantity.
func (b *Bid) Trade(n uint64) error {
	if n > b.Qty {
		return ErrNFTOvertrade
	}
	b.Qty -= n
	return nil
}

// Loan records a single credit extension against one unit of collateral.
type Loan struct {
	Cash      uint64
	StartedAt int64
	ExpiredAt int64
	State     LoanState
}

// Expired reports whether the repayment window has closed at the given
// timestamp. The comparison is strict so that repay and liquidate windows
// are exact complements at the boundary tick.
func (l *Loan) Expired(now int64) bool {
	return now > l.ExpiredAt
}

// Clone returns a copy of the pool so callers can safely mutate it.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
