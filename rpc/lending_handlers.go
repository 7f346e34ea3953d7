package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"nftlend/crypto"
	"nftlend/ledger"
	"nftlend/native/common"
	"nftlend/native/lending"
	"nftlend/storage"
)

const codeStateError = -32030

var rpcMethods = map[string]methodHandler{
	"lend_initializePool": {mutating: true, run: handleInitializePool},
	"lend_deposit":        {mutating: true, run: handleDeposit},
	"lend_withdraw":       {mutating: true, run: handleWithdraw},
	"lend_placeBid":       {mutating: true, run: handlePlaceBid},
	"lend_cancelBid":      {mutating: true, run: handleCancelBid},
	"lend_borrow":         {mutating: true, run: handleBorrow},
	"lend_repay":          {mutating: true, run: handleRepay},
	"lend_liquidate":      {mutating: true, run: handleLiquidate},
	"lend_getPool":        {run: handleGetPool},
	"lend_getListing":     {run: handleGetListing},
	"lend_getBid":         {run: handleGetBid},
	"lend_getLoan":        {run: handleGetLoan},

	"token_registerMint": {mutating: true, run: handleRegisterMint},
	"token_mint":         {mutating: true, run: handleMintTo},
	"token_getBalance":   {run: handleGetBalance},
}

func decodeParams(params []json.RawMessage, target interface{}) *RPCError {
	if len(params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected exactly one params object"}
	}
	if err := json.Unmarshal(params[0], target); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params payload", Data: err.Error()}
	}
	return nil
}

func decodeAddr(field, value string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, &RPCError{
			Code:    codeInvalidParams,
			Message: fmt.Sprintf("invalid %s address", field),
			Data:    err.Error(),
		}
	}
	return addr, nil
}

func engineError(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrModulePaused):
		return &RPCError{Code: codeStateError, Message: err.Error()}
	case errors.Is(err, lending.ErrPoolAddressIncorrect),
		errors.Is(err, lending.ErrListingAddressIncorrect),
		errors.Is(err, lending.ErrBidAddressIncorrect),
		errors.Is(err, lending.ErrLoanAddressIncorrect),
		errors.Is(err, lending.ErrNotNFTMint),
		errors.Is(err, lending.ErrWrongMint):
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, lending.ErrPoolNotFound),
		errors.Is(err, lending.ErrListingNotFound),
		errors.Is(err, lending.ErrBidNotFound),
		errors.Is(err, lending.ErrLoanNotFound):
		return &RPCError{Code: codeStateError, Message: err.Error()}
	case errors.Is(err, lending.ErrPoolAlreadyExists),
		errors.Is(err, lending.ErrLoanAlreadyExist),
		errors.Is(err, lending.ErrNFTOverdrawn),
		errors.Is(err, lending.ErrEmptyNFTReserve),
		errors.Is(err, lending.ErrNFTOvertrade),
		errors.Is(err, lending.ErrNFTOverbid),
		errors.Is(err, lending.ErrNFTBorrowExceedBid),
		errors.Is(err, lending.ErrLoanLiquidated),
		errors.Is(err, lending.ErrLoanNotExpired),
		errors.Is(err, lending.ErrLoanNotActive),
		errors.Is(err, lending.ErrAmountOverflow),
		errors.Is(err, lending.ErrNotAuthorized):
		return &RPCError{Code: codeStateError, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
	}
}

type poolResult struct {
	Address          string `json:"address"`
	Owner            string `json:"owner"`
	RewardMint       string `json:"rewardMint"`
	CurrencyMint     string `json:"currencyMint"`
	SettlementMint   string `json:"settlementMint"`
	DepositIncentive uint64 `json:"depositIncentive"`
	MaxLoanDuration  int64  `json:"maxLoanDuration"`
	ServiceFeeRate   uint64 `json:"serviceFeeRate"`
	InterestRate     uint64 `json:"interestRate"`
	TotalNumLoans    uint64 `json:"totalNumLoans"`
}

func poolResultFrom(addr crypto.Address, pool *lending.Pool) poolResult {
	return poolResult{
		Address:          addr.String(),
		Owner:            pool.Owner.String(),
		RewardMint:       pool.RewardMint.String(),
		CurrencyMint:     pool.CurrencyMint.String(),
		SettlementMint:   pool.SettlementMint.String(),
		DepositIncentive: pool.DepositIncentive,
		MaxLoanDuration:  pool.MaxLoanDuration,
		ServiceFeeRate:   pool.ServiceFeeRate,
		InterestRate:     pool.InterestRate,
		TotalNumLoans:    pool.TotalNumLoans,
	}
}

type listingResult struct {
	Address   string `json:"address"`
	Count     uint64 `json:"count"`
	Available uint64 `json:"available"`
}

type bidResult struct {
	Address string `json:"address"`
	Price   uint64 `json:"price"`
	Qty     uint64 `json:"qty"`
}

type loanResult struct {
	Address   string `json:"address"`
	Cash      uint64 `json:"cash"`
	StartedAt int64  `json:"startedAt"`
	ExpiredAt int64  `json:"expiredAt"`
	State     string `json:"state"`
}

func loanResultFrom(addr crypto.Address, loan *lending.Loan) loanResult {
	return loanResult{
		Address:   addr.String(),
		Cash:      loan.Cash,
		StartedAt: loan.StartedAt,
		ExpiredAt: loan.ExpiredAt,
		State:     loan.State.String(),
	}
}

type initializePoolParams struct {
	Caller         string `json:"caller"`
	RewardMint     string `json:"rewardMint"`
	CurrencyMint   string `json:"currencyMint"`
	SettlementMint string `json:"settlementMint"`
}

func handleInitializePool(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p initializePoolParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := decodeAddr("caller", p.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rewardMint, rpcErr := decodeAddr("rewardMint", p.RewardMint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	currencyMint, rpcErr := decodeAddr("currencyMint", p.CurrencyMint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	settlementMint, rpcErr := decodeAddr("settlementMint", p.SettlementMint)
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	poolAddr, _ := lending.PoolAddress(ledger.New(db))
	pool, err := engine.Initialize(caller, rewardMint, currencyMint, settlementMint, poolAddr)
	if err != nil {
		return nil, engineError(err)
	}
	if s.params != (lending.Params{}) {
		pool, err = engine.ApplyParams(caller, poolAddr, s.params)
		if err != nil {
			return nil, engineError(err)
		}
	}
	s.metrics.SetLoansTotal(pool.TotalNumLoans)
	return poolResultFrom(poolAddr, pool), nil
}

type depositParams struct {
	Owner      string `json:"owner"`
	Mint       string `json:"mint"`
	RewardMint string `json:"rewardMint"`
	Count      uint64 `json:"count"`
}

func handleDeposit(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p depositParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := decodeAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rewardMint, rpcErr := decodeAddr("rewardMint", p.RewardMint)
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	listingAddr, _ := lending.ListingAddress(ledger.New(db), mint, owner)
	listing, err := engine.Deposit(owner, mint, rewardMint, listingAddr, p.Count)
	if err != nil {
		return nil, engineError(err)
	}
	return listingResult{Address: listingAddr.String(), Count: listing.Count, Available: listing.Available}, nil
}

type withdrawParams struct {
	Owner string `json:"owner"`
	Mint  string `json:"mint"`
	Count uint64 `json:"count"`
}

func handleWithdraw(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p withdrawParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := decodeAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	listingAddr, _ := lending.ListingAddress(ledger.New(db), mint, owner)
	listing, err := engine.Withdraw(owner, mint, listingAddr, p.Count)
	if err != nil {
		return nil, engineError(err)
	}
	return listingResult{Address: listingAddr.String(), Count: listing.Count, Available: listing.Available}, nil
}

type placeBidParams struct {
	Lender string `json:"lender"`
	Mint   string `json:"mint"`
	Price  uint64 `json:"price"`
	Qty    uint64 `json:"qty"`
}

func handlePlaceBid(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p placeBidParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	lender, rpcErr := decodeAddr("lender", p.Lender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	bidAddr, _ := lending.BidAddress(ledger.New(db), mint, lender)
	bid, err := engine.PlaceBid(lender, mint, bidAddr, p.Price, p.Qty)
	if err != nil {
		return nil, engineError(err)
	}
	return bidResult{Address: bidAddr.String(), Price: bid.Price, Qty: bid.Qty}, nil
}

type cancelBidParams struct {
	Lender string `json:"lender"`
	Mint   string `json:"mint"`
	Revoke bool   `json:"revoke"`
}

func handleCancelBid(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p cancelBidParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	lender, rpcErr := decodeAddr("lender", p.Lender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	bidAddr, _ := lending.BidAddress(ledger.New(db), mint, lender)
	if err := engine.CancelBid(lender, mint, bidAddr, p.Revoke); err != nil {
		return nil, engineError(err)
	}
	return bidResult{Address: bidAddr.String()}, nil
}

type loanOpParams struct {
	Borrower string `json:"borrower"`
	Lender   string `json:"lender"`
	Mint     string `json:"mint"`
	LoanID   string `json:"loanId"`
	Amount   uint64 `json:"amount,omitempty"`
}

func (p loanOpParams) decode() (borrower, lender, mint crypto.Address, id lending.LoanID, rpcErr *RPCError) {
	if borrower, rpcErr = decodeAddr("borrower", p.Borrower); rpcErr != nil {
		return
	}
	if lender, rpcErr = decodeAddr("lender", p.Lender); rpcErr != nil {
		return
	}
	if mint, rpcErr = decodeAddr("mint", p.Mint); rpcErr != nil {
		return
	}
	parsed, err := lending.ParseLoanID(p.LoanID)
	if err != nil {
		rpcErr = &RPCError{Code: codeInvalidParams, Message: "invalid loan id", Data: err.Error()}
		return
	}
	id = parsed
	return
}

func handleBorrow(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p loanOpParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	borrower, lender, mint, id, rpcErr := p.decode()
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	d := ledger.New(db)
	listingAddr, _ := lending.ListingAddress(d, mint, borrower)
	bidAddr, _ := lending.BidAddress(d, mint, lender)
	loanAddr, _ := lending.LoanAddress(d, mint, borrower, lender, id)
	loan, err := engine.Borrow(lending.BorrowParams{
		Borrower:    borrower,
		Lender:      lender,
		Mint:        mint,
		LoanID:      id,
		ListingAddr: listingAddr,
		BidAddr:     bidAddr,
		LoanAddr:    loanAddr,
		Amount:      p.Amount,
	})
	if err != nil {
		return nil, engineError(err)
	}
	if pool, perr := engine.GetPool(); perr == nil {
		s.metrics.SetLoansTotal(pool.TotalNumLoans)
	}
	return loanResultFrom(loanAddr, loan), nil
}

func handleRepay(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p loanOpParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	borrower, lender, mint, id, rpcErr := p.decode()
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	d := ledger.New(db)
	listingAddr, _ := lending.ListingAddress(d, mint, borrower)
	loanAddr, _ := lending.LoanAddress(d, mint, borrower, lender, id)
	loan, err := engine.Repay(lending.RepayParams{
		Borrower:    borrower,
		Lender:      lender,
		Mint:        mint,
		LoanID:      id,
		ListingAddr: listingAddr,
		LoanAddr:    loanAddr,
	})
	if err != nil {
		return nil, engineError(err)
	}
	return loanResultFrom(loanAddr, loan), nil
}

func handleLiquidate(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p loanOpParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	borrower, lender, mint, id, rpcErr := p.decode()
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	d := ledger.New(db)
	listingAddr, _ := lending.ListingAddress(d, mint, borrower)
	loanAddr, _ := lending.LoanAddress(d, mint, borrower, lender, id)
	loan, err := engine.Liquidate(lending.LiquidateParams{
		Lender:      lender,
		Borrower:    borrower,
		Mint:        mint,
		LoanID:      id,
		ListingAddr: listingAddr,
		LoanAddr:    loanAddr,
	})
	if err != nil {
		return nil, engineError(err)
	}
	return loanResultFrom(loanAddr, loan), nil
}

func handleGetPool(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	engine := s.engineFor(db)
	pool, err := engine.GetPool()
	if err != nil {
		return nil, engineError(err)
	}
	poolAddr, _ := lending.PoolAddress(ledger.New(db))
	return poolResultFrom(poolAddr, pool), nil
}

type listingQueryParams struct {
	Owner string `json:"owner"`
	Mint  string `json:"mint"`
}

func handleGetListing(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p listingQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := decodeAddr("owner", p.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	listing, err := engine.GetListing(mint, owner)
	if err != nil {
		return nil, engineError(err)
	}
	listingAddr, _ := lending.ListingAddress(ledger.New(db), mint, owner)
	return listingResult{Address: listingAddr.String(), Count: listing.Count, Available: listing.Available}, nil
}

type bidQueryParams struct {
	Lender string `json:"lender"`
	Mint   string `json:"mint"`
}

func handleGetBid(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p bidQueryParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	lender, rpcErr := decodeAddr("lender", p.Lender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	mint, rpcErr := decodeAddr("mint", p.Mint)
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	bid, err := engine.GetBid(mint, lender)
	if err != nil {
		return nil, engineError(err)
	}
	bidAddr, _ := lending.BidAddress(ledger.New(db), mint, lender)
	return bidResult{Address: bidAddr.String(), Price: bid.Price, Qty: bid.Qty}, nil
}

func handleGetLoan(s *Server, db storage.Database, params []json.RawMessage) (interface{}, *RPCError) {
	var p loanOpParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	borrower, lender, mint, id, rpcErr := p.decode()
	if rpcErr != nil {
		return nil, rpcErr
	}

	engine := s.engineFor(db)
	loan, err := engine.GetLoan(mint, borrower, lender, id)
	if err != nil {
		return nil, engineError(err)
	}
	loanAddr, _ := lending.LoanAddress(ledger.New(db), mint, borrower, lender, id)
	return loanResultFrom(loanAddr, loan), nil
}
