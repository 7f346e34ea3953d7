package lending

import (
	"strconv"

	"nftlend/core/types"
	"nftlend/crypto"
)

const (
	EventTypePoolInitialized     = "lending.pool.initialized"
	EventTypeCollateralDeposited = "lending.collateral.deposited"
	EventTypeCollateralWithdrawn = "lending.collateral.withdrawn"
	EventTypeBidPlaced           = "lending.bid.placed"
	EventTypeBidCancelled        = "lending.bid.cancelled"
	EventTypeLoanStarted         = "lending.loan.started"
	EventTypeLoanRepaid          = "lending.loan.repaid"
	EventTypeLoanLiquidated      = "lending.loan.liquidated"
)

func newPoolInitializedEvent(addr crypto.Address, pool *Pool) *types.Event {
	attrs := make(map[string]string)
	if pool == nil {
		return &types.Event{Type: EventTypePoolInitialized, Attributes: attrs}
	}
	attrs["pool"] = addr.String()
	attrs["owner"] = pool.Owner.String()
	attrs["rewardMint"] = pool.RewardMint.String()
	attrs["currencyMint"] = pool.CurrencyMint.String()
	attrs["settlementMint"] = pool.SettlementMint.String()
	attrs["depositIncentive"] = strconv.FormatUint(pool.DepositIncentive, 10)
	attrs["maxLoanDuration"] = strconv.FormatInt(pool.MaxLoanDuration, 10)
	attrs["serviceFeeRate"] = strconv.FormatUint(pool.ServiceFeeRate, 10)
	attrs["interestRate"] = strconv.FormatUint(pool.InterestRate, 10)
	return &types.Event{Type: EventTypePoolInitialized, Attributes: attrs}
}

func newCollateralDepositedEvent(mint, owner crypto.Address, count uint64, listing *Listing) *types.Event {
	return newListingEvent(EventTypeCollateralDeposited, mint, owner, count, listing)
}

func newCollateralWithdrawnEvent(mint, owner crypto.Address, count uint64, listing *Listing) *types.Event {
	return newListingEvent(EventTypeCollateralWithdrawn, mint, owner, count, listing)
}

func newListingEvent(eventType string, mint, owner crypto.Address, count uint64, listing *Listing) *types.Event {
	attrs := make(map[string]string)
	attrs["mint"] = mint.String()
	attrs["owner"] = owner.String()
	attrs["count"] = strconv.FormatUint(count, 10)
	if listing != nil {
		attrs["listingCount"] = strconv.FormatUint(listing.Count, 10)
		attrs["listingAvailable"] = strconv.FormatUint(listing.Available, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newBidPlacedEvent(mint, lender crypto.Address, bid *Bid) *types.Event {
	attrs := make(map[string]string)
	attrs["mint"] = mint.String()
	attrs["lender"] = lender.String()
	if bid != nil {
		attrs["price"] = strconv.FormatUint(bid.Price, 10)
		attrs["qty"] = strconv.FormatUint(bid.Qty, 10)
	}
	return &types.Event{Type: EventTypeBidPlaced, Attributes: attrs}
}

func newBidCancelledEvent(mint, lender crypto.Address, revoked bool) *types.Event {
	attrs := map[string]string{
		"mint":    mint.String(),
		"lender":  lender.String(),
		"revoked": strconv.FormatBool(revoked),
	}
	return &types.Event{Type: EventTypeBidCancelled, Attributes: attrs}
}

func newLoanStartedEvent(p BorrowParams, loan *Loan) *types.Event {
	attrs := loanAttrs(p.Mint, p.Borrower, p.Lender, p.LoanID, loan)
	return &types.Event{Type: EventTypeLoanStarted, Attributes: attrs}
}

func newLoanRepaidEvent(p RepayParams, loan *Loan, interest, fee uint64) *types.Event {
	attrs := loanAttrs(p.Mint, p.Borrower, p.Lender, p.LoanID, loan)
	attrs["interest"] = strconv.FormatUint(interest, 10)
	attrs["fee"] = strconv.FormatUint(fee, 10)
	return &types.Event{Type: EventTypeLoanRepaid, Attributes: attrs}
}

func newLoanLiquidatedEvent(p LiquidateParams, loan *Loan) *types.Event {
	attrs := loanAttrs(p.Mint, p.Borrower, p.Lender, p.LoanID, loan)
	return &types.Event{Type: EventTypeLoanLiquidated, Attributes: attrs}
}

func loanAttrs(mint, borrower, lender crypto.Address, id LoanID, loan *Loan) map[string]string {
	attrs := map[string]string{
		"mint":     mint.String(),
		"borrower": borrower.String(),
		"lender":   lender.String(),
		"loanId":   id.String(),
	}
	if loan != nil {
		attrs["cash"] = strconv.FormatUint(loan.Cash, 10)
		attrs["startedAt"] = strconv.FormatInt(loan.StartedAt, 10)
		attrs["expiredAt"] = strconv.FormatInt(loan.ExpiredAt, 10)
		attrs["state"] = loan.State.String()
	}
	return attrs
}
