package lending

import "errors"

// Address verification failures. A caller-supplied record address that does
// not match the canonical derivation always aborts with no state change.
var (
	ErrPoolAddressIncorrect    = errors.New("lending: pool address incorrect")
	ErrListingAddressIncorrect = errors.New("lending: listing address incorrect")
	ErrBidAddressIncorrect     = errors.New("lending: bid address incorrect")
	ErrLoanAddressIncorrect    = errors.New("lending: loan address incorrect")
)

// Capacity violations: an operation would push a count, availability or bid
// beyond its bound.
var (
	ErrNFTOverdrawn      = errors.New("lending: withdraw exceeds available collateral")
	ErrEmptyNFTReserve   = errors.New("lending: no collateral available to borrow against")
	ErrNFTOvertrade      = errors.New("lending: trade exceeds bid quantity")
	ErrNFTOverbid        = errors.New("lending: bid quantity exceeds collateral supply")
	ErrNFTBorrowExceedBid = errors.New("lending: borrow amount exceeds bid price")
)

// Lifecycle state conflicts.
var (
	ErrPoolAlreadyExists = errors.New("lending: pool already initialized")
	ErrPoolNotFound      = errors.New("lending: pool not initialized")
	ErrLoanAlreadyExist  = errors.New("lending: loan record already exists")
	ErrLoanNotFound      = errors.New("lending: loan record not found")
	ErrLoanLiquidated    = errors.New("lending: repayment window closed")
	ErrLoanNotExpired    = errors.New("lending: loan is not expired yet")
	ErrLoanNotActive     = errors.New("lending: loan is not active")
	ErrListingNotFound   = errors.New("lending: listing record not found")
	ErrBidNotFound       = errors.New("lending: bid record not found")
)

// Arithmetic and authority faults.
var (
	ErrAmountOverflow = errors.New("lending: amount arithmetic overflow")
	ErrNotAuthorized  = errors.New("lending: not authorized")
	ErrNotNFTMint     = errors.New("lending: collateral mint must have zero decimals")
	ErrWrongMint      = errors.New("lending: mint does not match pool configuration")
	ErrNilState       = errors.New("lending: engine state not configured")
)
