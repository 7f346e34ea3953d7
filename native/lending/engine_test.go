package lending

import (
	"errors"
	"testing"

	"nftlend/core/events"
	"nftlend/crypto"
	"nftlend/ledger"
	nativecommon "nftlend/native/common"
	"nftlend/storage"
	"nftlend/token"
)

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

func makeAddress(prefix crypto.AddressPrefix, fill byte) crypto.Address {
	b := make([]byte, crypto.AddressLength)
	for i := range b {
		b[i] = fill
	}
	return crypto.NewAddress(prefix, b)
}

type testEnv struct {
	t       *testing.T
	engine  *Engine
	records *ledger.Ledger
	tokens  *token.Ledger
	now     int64

	authority crypto.Address
	owner     crypto.Address
	lender    crypto.Address

	nftMint        crypto.Address
	rewardMint     crypto.Address
	currencyMint   crypto.Address
	settlementMint crypto.Address

	poolAddr crypto.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	env := &testEnv{
		t:       t,
		records: ledger.New(db),
		tokens:  token.New(db),
		now:     1_700_000_000,

		authority: makeAddress(crypto.WalletPrefix, 0x01),
		owner:     makeAddress(crypto.WalletPrefix, 0x02),
		lender:    makeAddress(crypto.WalletPrefix, 0x03),

		nftMint:        makeAddress(crypto.MintPrefix, 0x10),
		rewardMint:     makeAddress(crypto.MintPrefix, 0x11),
		currencyMint:   makeAddress(crypto.MintPrefix, 0x12),
		settlementMint: makeAddress(crypto.MintPrefix, 0x13),
	}
	env.engine = NewEngine(env.records, env.tokens)
	env.engine.SetNowFunc(func() int64 { return env.now })

	env.registerMint(env.nftMint, 0)
	env.registerMint(env.rewardMint, 2)
	env.registerMint(env.currencyMint, 6)
	env.registerMint(env.settlementMint, 6)

	env.mintTo(env.nftMint, env.owner, 10)
	env.mintTo(env.currencyMint, env.lender, 1_000_000)

	env.poolAddr, _ = PoolAddress(env.records)
	return env
}

func (env *testEnv) registerMint(mint crypto.Address, decimals uint8) {
	env.t.Helper()
	if err := env.tokens.RegisterMint(mint, env.authority, decimals); err != nil {
		env.t.Fatalf("register mint: %v", err)
	}
}

func (env *testEnv) mintTo(mint, to crypto.Address, amount uint64) {
	env.t.Helper()
	if err := env.tokens.MintTo(mint, env.authority, to, amount); err != nil {
		env.t.Fatalf("mint to: %v", err)
	}
}

func (env *testEnv) balance(mint, owner crypto.Address) uint64 {
	env.t.Helper()
	amount, err := env.tokens.BalanceOf(mint, owner)
	if err != nil {
		env.t.Fatalf("balance of: %v", err)
	}
	return amount
}

func (env *testEnv) initPool() *Pool {
	env.t.Helper()
	pool, err := env.engine.Initialize(env.authority, env.rewardMint, env.currencyMint, env.settlementMint, env.poolAddr)
	if err != nil {
		env.t.Fatalf("initialize pool: %v", err)
	}
	// The pool funds deposit incentives from its own reward balance.
	env.mintTo(env.rewardMint, env.poolAddr, 10_000_000)
	return pool
}

func (env *testEnv) deposit(count uint64) *Listing {
	env.t.Helper()
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)
	listing, err := env.engine.Deposit(env.owner, env.nftMint, env.rewardMint, listingAddr, count)
	if err != nil {
		env.t.Fatalf("deposit: %v", err)
	}
	return listing
}

func (env *testEnv) placeBid(price, qty uint64) *Bid {
	env.t.Helper()
	bidAddr, _ := BidAddress(env.records, env.nftMint, env.lender)
	bid, err := env.engine.PlaceBid(env.lender, env.nftMint, bidAddr, price, qty)
	if err != nil {
		env.t.Fatalf("place bid: %v", err)
	}
	return bid
}

func (env *testEnv) borrowParams(id LoanID, amount uint64) BorrowParams {
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)
	bidAddr, _ := BidAddress(env.records, env.nftMint, env.lender)
	loanAddr, _ := LoanAddress(env.records, env.nftMint, env.owner, env.lender, id)
	return BorrowParams{
		Borrower:    env.owner,
		Lender:      env.lender,
		Mint:        env.nftMint,
		LoanID:      id,
		ListingAddr: listingAddr,
		BidAddr:     bidAddr,
		LoanAddr:    loanAddr,
		Amount:      amount,
	}
}

func (env *testEnv) repayParams(id LoanID) RepayParams {
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)
	loanAddr, _ := LoanAddress(env.records, env.nftMint, env.owner, env.lender, id)
	return RepayParams{
		Borrower:    env.owner,
		Lender:      env.lender,
		Mint:        env.nftMint,
		LoanID:      id,
		ListingAddr: listingAddr,
		LoanAddr:    loanAddr,
	}
}

func (env *testEnv) liquidateParams(id LoanID) LiquidateParams {
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)
	loanAddr, _ := LoanAddress(env.records, env.nftMint, env.owner, env.lender, id)
	return LiquidateParams{
		Lender:      env.lender,
		Borrower:    env.owner,
		Mint:        env.nftMint,
		LoanID:      id,
		ListingAddr: listingAddr,
		LoanAddr:    loanAddr,
	}
}

func loanID(fill byte) LoanID {
	var id LoanID
	for i := range id {
		id[i] = fill
	}
	return id
}

func TestInitializeAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	pool := env.initPool()

	// Reward mint has two decimals, so the whole-token incentive scales to
	// 100 * 10^2 base units.
	if pool.DepositIncentive != 10_000 {
		t.Fatalf("expected deposit incentive 10000, got %d", pool.DepositIncentive)
	}
	if pool.MaxLoanDuration != 30*24*60*60 {
		t.Fatalf("expected 30 day loan duration, got %d", pool.MaxLoanDuration)
	}
	if pool.ServiceFeeRate != 500 || pool.InterestRate != 100 {
		t.Fatalf("unexpected fee rates: service=%d interest=%d", pool.ServiceFeeRate, pool.InterestRate)
	}
	if pool.TotalNumLoans != 0 {
		t.Fatalf("expected zero loans, got %d", pool.TotalNumLoans)
	}
	if !pool.Owner.Equal(env.authority) {
		t.Fatalf("unexpected pool owner")
	}

	stored, err := env.engine.GetPool()
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if stored.DepositIncentive != pool.DepositIncentive || stored.Bump != pool.Bump {
		t.Fatalf("stored pool does not match initialized pool")
	}
}

func TestInitializeRejectsDuplicateAndWrongAddress(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()

	if _, err := env.engine.Initialize(env.authority, env.rewardMint, env.currencyMint, env.settlementMint, env.poolAddr); !errors.Is(err, ErrPoolAlreadyExists) {
		t.Fatalf("expected ErrPoolAlreadyExists, got %v", err)
	}
	wrong := makeAddress(crypto.RecordPrefix, 0x7F)
	if _, err := env.engine.Initialize(env.authority, env.rewardMint, env.currencyMint, env.settlementMint, wrong); !errors.Is(err, ErrPoolAddressIncorrect) {
		t.Fatalf("expected ErrPoolAddressIncorrect, got %v", err)
	}
}

func TestDepositTransfersCollateralAndIncentive(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()

	listing := env.deposit(3)
	if listing.Count != 3 || listing.Available != 3 {
		t.Fatalf("expected listing 3/3, got %d/%d", listing.Count, listing.Available)
	}
	if got := env.balance(env.nftMint, env.owner); got != 7 {
		t.Fatalf("expected 7 collateral units left, got %d", got)
	}
	if got := env.balance(env.nftMint, env.poolAddr); got != 3 {
		t.Fatalf("expected 3 units in pool custody, got %d", got)
	}
	if got := env.balance(env.rewardMint, env.owner); got != 3*10_000 {
		t.Fatalf("expected incentive 30000, got %d", got)
	}

	// A second deposit accumulates on the same listing.
	listing = env.deposit(2)
	if listing.Count != 5 || listing.Available != 5 {
		t.Fatalf("expected listing 5/5, got %d/%d", listing.Count, listing.Available)
	}
}

func TestDepositZeroIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()

	listing := env.deposit(0)
	if listing.Count != 0 || listing.Available != 0 {
		t.Fatalf("expected empty listing, got %d/%d", listing.Count, listing.Available)
	}
	if got := env.balance(env.nftMint, env.owner); got != 10 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)
	allocated, err := env.records.Allocated(listingAddr)
	if err != nil {
		t.Fatalf("allocated: %v", err)
	}
	if allocated {
		t.Fatalf("zero deposit must not allocate a listing record")
	}
}

func TestDepositRejectsWrongMints(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)

	if _, err := env.engine.Deposit(env.owner, env.nftMint, env.settlementMint, listingAddr, 1); !errors.Is(err, ErrWrongMint) {
		t.Fatalf("expected ErrWrongMint, got %v", err)
	}
	// The currency mint has nonzero decimals and cannot serve as collateral.
	fungibleListing, _ := ListingAddress(env.records, env.currencyMint, env.owner)
	if _, err := env.engine.Deposit(env.owner, env.currencyMint, env.rewardMint, fungibleListing, 1); !errors.Is(err, ErrNotNFTMint) {
		t.Fatalf("expected ErrNotNFTMint, got %v", err)
	}
	wrong := makeAddress(crypto.RecordPrefix, 0x7E)
	if _, err := env.engine.Deposit(env.owner, env.nftMint, env.rewardMint, wrong, 1); !errors.Is(err, ErrListingAddressIncorrect) {
		t.Fatalf("expected ErrListingAddressIncorrect, got %v", err)
	}
}

func TestWithdrawReturnsCollateral(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(3)
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)

	listing, err := env.engine.Withdraw(env.owner, env.nftMint, listingAddr, 2)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if listing.Count != 1 || listing.Available != 1 {
		t.Fatalf("expected listing 1/1, got %d/%d", listing.Count, listing.Available)
	}
	if got := env.balance(env.nftMint, env.owner); got != 9 {
		t.Fatalf("expected 9 units back with owner, got %d", got)
	}

	if _, err := env.engine.Withdraw(env.owner, env.nftMint, listingAddr, 2); !errors.Is(err, ErrNFTOverdrawn) {
		t.Fatalf("expected ErrNFTOverdrawn, got %v", err)
	}
}

func TestWithdrawRequiresListingOwner(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(1)
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)

	if _, err := env.engine.Withdraw(env.lender, env.nftMint, listingAddr, 1); err == nil {
		t.Fatalf("expected withdraw by non-owner to fail")
	}
}

func TestPlaceBidDelegatesNotional(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()

	bid := env.placeBid(60_000, 2)
	if bid.Price != 60_000 || bid.Qty != 2 {
		t.Fatalf("unexpected bid %d/%d", bid.Price, bid.Qty)
	}
	delegate, amount, err := env.tokens.Delegation(env.currencyMint, env.lender)
	if err != nil {
		t.Fatalf("delegation: %v", err)
	}
	if !delegate.Equal(env.poolAddr) {
		t.Fatalf("expected delegation to pool")
	}
	if amount != 120_000 {
		t.Fatalf("expected delegated 120000, got %d", amount)
	}

	// Replacing the bid overwrites both price and quantity.
	bid = env.placeBid(50_000, 1)
	if bid.Price != 50_000 || bid.Qty != 1 {
		t.Fatalf("expected replaced bid 50000/1, got %d/%d", bid.Price, bid.Qty)
	}
}

func TestPlaceBidRejectsExcessQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	bidAddr, _ := BidAddress(env.records, env.nftMint, env.lender)

	// The collateral supply is 10 units.
	if _, err := env.engine.PlaceBid(env.lender, env.nftMint, bidAddr, 1, 11); !errors.Is(err, ErrNFTOverbid) {
		t.Fatalf("expected ErrNFTOverbid, got %v", err)
	}
	if _, err := env.engine.PlaceBid(env.lender, env.nftMint, bidAddr, ^uint64(0), 2); !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
}

func TestCancelBid(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.placeBid(60_000, 2)
	bidAddr, _ := BidAddress(env.records, env.nftMint, env.lender)

	if err := env.engine.CancelBid(env.lender, env.nftMint, bidAddr, true); err != nil {
		t.Fatalf("cancel bid: %v", err)
	}
	bid, err := env.engine.GetBid(env.nftMint, env.lender)
	if err != nil {
		t.Fatalf("get bid: %v", err)
	}
	if bid.Price != 0 || bid.Qty != 0 {
		t.Fatalf("expected cancelled bid, got %d/%d", bid.Price, bid.Qty)
	}
	delegate, amount, err := env.tokens.Delegation(env.currencyMint, env.lender)
	if err != nil {
		t.Fatalf("delegation: %v", err)
	}
	if !delegate.IsZero() || amount != 0 {
		t.Fatalf("expected delegation revoked, got %s/%d", delegate.String(), amount)
	}

	// A different wallet derives a different bid address, so impersonation
	// fails the address check.
	if err := env.engine.CancelBid(env.owner, env.nftMint, bidAddr, false); !errors.Is(err, ErrBidAddressIncorrect) {
		t.Fatalf("expected ErrBidAddressIncorrect, got %v", err)
	}
}

func TestBorrowOriginatesLoan(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(3)
	env.placeBid(60_000, 2)

	id := loanID(0xA1)
	loan, err := env.engine.Borrow(env.borrowParams(id, 50_000))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if loan.Cash != 50_000 || loan.State != LoanActive {
		t.Fatalf("unexpected loan %+v", loan)
	}
	if loan.StartedAt != env.now || loan.ExpiredAt != env.now+30*24*60*60 {
		t.Fatalf("unexpected loan window %d..%d", loan.StartedAt, loan.ExpiredAt)
	}

	if got := env.balance(env.currencyMint, env.owner); got != 50_000 {
		t.Fatalf("expected borrower funded 50000, got %d", got)
	}
	if got := env.balance(env.currencyMint, env.lender); got != 950_000 {
		t.Fatalf("expected lender balance 950000, got %d", got)
	}
	_, remaining, err := env.tokens.Delegation(env.currencyMint, env.lender)
	if err != nil {
		t.Fatalf("delegation: %v", err)
	}
	if remaining != 70_000 {
		t.Fatalf("expected delegation drawn to 70000, got %d", remaining)
	}

	listing, err := env.engine.GetListing(env.nftMint, env.owner)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Count != 3 || listing.Available != 2 {
		t.Fatalf("expected listing 3/2, got %d/%d", listing.Count, listing.Available)
	}
	bid, err := env.engine.GetBid(env.nftMint, env.lender)
	if err != nil {
		t.Fatalf("get bid: %v", err)
	}
	if bid.Qty != 1 {
		t.Fatalf("expected bid qty 1, got %d", bid.Qty)
	}
	pool, err := env.engine.GetPool()
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool.TotalNumLoans != 1 {
		t.Fatalf("expected one loan recorded, got %d", pool.TotalNumLoans)
	}
}

func TestBorrowRejections(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(1)
	env.placeBid(60_000, 1)

	if _, err := env.engine.Borrow(env.borrowParams(loanID(0x01), 60_001)); !errors.Is(err, ErrNFTBorrowExceedBid) {
		t.Fatalf("expected ErrNFTBorrowExceedBid, got %v", err)
	}

	id := loanID(0x02)
	if _, err := env.engine.Borrow(env.borrowParams(id, 60_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := env.engine.Borrow(env.borrowParams(id, 1)); !errors.Is(err, ErrLoanAlreadyExist) {
		t.Fatalf("expected ErrLoanAlreadyExist, got %v", err)
	}

	// Bid quantity is exhausted before the listing empties here.
	env.deposit(1)
	if _, err := env.engine.Borrow(env.borrowParams(loanID(0x03), 1)); !errors.Is(err, ErrNFTOvertrade) {
		t.Fatalf("expected ErrNFTOvertrade, got %v", err)
	}

	// Re-arm the bid and drain the listing instead.
	env.placeBid(60_000, 1)
	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)
	if _, err := env.engine.Withdraw(env.owner, env.nftMint, listingAddr, 1); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := env.engine.Borrow(env.borrowParams(loanID(0x04), 1)); !errors.Is(err, ErrEmptyNFTReserve) {
		t.Fatalf("expected ErrEmptyNFTReserve, got %v", err)
	}
}

func TestRepaySettlesPrincipalInterestAndFee(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(2)
	env.placeBid(60_000, 2)
	env.mintTo(env.currencyMint, env.owner, 10_000)

	id := loanID(0xB1)
	if _, err := env.engine.Borrow(env.borrowParams(id, 50_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// interest = 1% of 50000, service fee = 5% of 50000.
	env.now += 1000
	loan, err := env.engine.Repay(env.repayParams(id))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if loan.State != LoanRepaid {
		t.Fatalf("expected repaid loan, got %v", loan.State)
	}
	if got := env.balance(env.currencyMint, env.owner); got != 10_000+50_000-50_500-2_500 {
		t.Fatalf("unexpected borrower balance %d", got)
	}
	if got := env.balance(env.currencyMint, env.lender); got != 950_000+50_500 {
		t.Fatalf("unexpected lender balance %d", got)
	}
	if got := env.balance(env.currencyMint, env.poolAddr); got != 2_500 {
		t.Fatalf("expected pool fee 2500, got %d", got)
	}

	listing, err := env.engine.GetListing(env.nftMint, env.owner)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Count != 2 || listing.Available != 2 {
		t.Fatalf("expected listing restored to 2/2, got %d/%d", listing.Count, listing.Available)
	}

	if _, err := env.engine.Repay(env.repayParams(id)); !errors.Is(err, ErrLoanNotActive) {
		t.Fatalf("expected ErrLoanNotActive on double repay, got %v", err)
	}
}

func TestRepayWindowBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(1)
	env.placeBid(60_000, 1)
	env.mintTo(env.currencyMint, env.owner, 10_000)

	id := loanID(0xB2)
	loan, err := env.engine.Borrow(env.borrowParams(id, 50_000))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Exactly at expiry the loan is still repayable and not liquidatable.
	env.now = loan.ExpiredAt
	if _, err := env.engine.Liquidate(env.liquidateParams(id)); !errors.Is(err, ErrLoanNotExpired) {
		t.Fatalf("expected ErrLoanNotExpired at boundary, got %v", err)
	}
	if _, err := env.engine.Repay(env.repayParams(id)); err != nil {
		t.Fatalf("repay at boundary: %v", err)
	}
}

func TestRepayRejectedAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(1)
	env.placeBid(60_000, 1)
	env.mintTo(env.currencyMint, env.owner, 10_000)

	id := loanID(0xB3)
	loan, err := env.engine.Borrow(env.borrowParams(id, 50_000))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	env.now = loan.ExpiredAt + 1
	if _, err := env.engine.Repay(env.repayParams(id)); !errors.Is(err, ErrLoanLiquidated) {
		t.Fatalf("expected ErrLoanLiquidated past expiry, got %v", err)
	}
	// Overdue means unrepayable even before liquidation executes; the record
	// itself is still marked active.
	stored, err := env.engine.GetLoan(env.nftMint, env.owner, env.lender, id)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if stored.State != LoanActive {
		t.Fatalf("expected stored state active, got %v", stored.State)
	}
}

func TestLiquidateForfeitsCollateral(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(2)
	env.placeBid(60_000, 1)

	id := loanID(0xC1)
	loan, err := env.engine.Borrow(env.borrowParams(id, 50_000))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	env.now = loan.ExpiredAt + 1
	loan, err = env.engine.Liquidate(env.liquidateParams(id))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if loan.State != LoanLiquidated {
		t.Fatalf("expected liquidated state, got %v", loan.State)
	}
	if got := env.balance(env.nftMint, env.lender); got != 1 {
		t.Fatalf("expected lender to hold the collateral unit, got %d", got)
	}
	if got := env.balance(env.nftMint, env.poolAddr); got != 1 {
		t.Fatalf("expected one unit left in custody, got %d", got)
	}
	listing, err := env.engine.GetListing(env.nftMint, env.owner)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if listing.Count != 1 || listing.Available != 1 {
		t.Fatalf("expected listing 1/1 after forfeit, got %d/%d", listing.Count, listing.Available)
	}

	if _, err := env.engine.Liquidate(env.liquidateParams(id)); !errors.Is(err, ErrLoanNotActive) {
		t.Fatalf("expected ErrLoanNotActive on double liquidate, got %v", err)
	}
	if _, err := env.engine.Repay(env.repayParams(id)); !errors.Is(err, ErrLoanLiquidated) {
		t.Fatalf("expected ErrLoanLiquidated on repay after liquidate, got %v", err)
	}
}

func TestPauseGuardBlocksMutations(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.engine.SetPauses(stubPauseView{modules: map[string]bool{"lending": true}})

	listingAddr, _ := ListingAddress(env.records, env.nftMint, env.owner)
	if _, err := env.engine.Deposit(env.owner, env.nftMint, env.rewardMint, listingAddr, 1); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	bidAddr, _ := BidAddress(env.records, env.nftMint, env.lender)
	if _, err := env.engine.PlaceBid(env.lender, env.nftMint, bidAddr, 1, 1); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if got := env.balance(env.nftMint, env.owner); got != 10 {
		t.Fatalf("expected balances untouched under pause, got %d", got)
	}
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	if evt != nil {
		r.types = append(r.types, evt.EventType())
	}
}

func TestEngineEmitsLifecycleEvents(t *testing.T) {
	env := newTestEnv(t)
	emitter := &recordingEmitter{}
	env.engine.SetEmitter(emitter)

	env.initPool()
	env.deposit(1)
	env.placeBid(60_000, 1)
	env.mintTo(env.currencyMint, env.owner, 10_000)
	id := loanID(0xE1)
	if _, err := env.engine.Borrow(env.borrowParams(id, 50_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if _, err := env.engine.Repay(env.repayParams(id)); err != nil {
		t.Fatalf("repay: %v", err)
	}

	want := []string{
		EventTypePoolInitialized,
		EventTypeCollateralDeposited,
		EventTypeBidPlaced,
		EventTypeLoanStarted,
		EventTypeLoanRepaid,
	}
	if len(emitter.types) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), emitter.types)
	}
	for i, eventType := range want {
		if emitter.types[i] != eventType {
			t.Fatalf("expected event %s at position %d, got %s", eventType, i, emitter.types[i])
		}
	}
}

func TestApplyParamsOverridesEconomics(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()

	pool, err := env.engine.ApplyParams(env.authority, env.poolAddr, Params{
		MaxLoanDuration: 7 * 24 * 60 * 60,
		InterestRate:    250,
	})
	if err != nil {
		t.Fatalf("apply params: %v", err)
	}
	if pool.MaxLoanDuration != 7*24*60*60 || pool.InterestRate != 250 {
		t.Fatalf("overrides not applied: %+v", pool)
	}
	// Unset fields keep their defaults.
	if pool.ServiceFeeRate != 500 || pool.DepositIncentive != 10_000 {
		t.Fatalf("defaults clobbered: %+v", pool)
	}

	if _, err := env.engine.ApplyParams(env.owner, env.poolAddr, Params{InterestRate: 1}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := env.engine.ApplyParams(env.authority, env.poolAddr, Params{InterestRate: 20_000}); err == nil {
		t.Fatalf("expected invalid interest rate to be rejected")
	}
}

func TestLoanStateRejectsUnknownWireValue(t *testing.T) {
	env := newTestEnv(t)
	env.initPool()
	env.deposit(1)
	env.placeBid(60_000, 1)

	id := loanID(0xD1)
	if _, err := env.engine.Borrow(env.borrowParams(id, 1)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	loanAddr, _ := LoanAddress(env.records, env.nftMint, env.owner, env.lender, id)
	data, found, err := env.records.Read(loanAddr)
	if err != nil || !found {
		t.Fatalf("read loan: found=%v err=%v", found, err)
	}
	if len(data) == 0 {
		t.Fatalf("expected loan payload")
	}
	loan, err := decodeLoan(data)
	if err != nil {
		t.Fatalf("decode loan: %v", err)
	}
	loan.State = LoanState(9)
	corrupt, err := encodeLoan(loan)
	if err != nil {
		t.Fatalf("encode loan: %v", err)
	}
	if err := env.records.Write(loanAddr, corrupt); err != nil {
		t.Fatalf("write loan: %v", err)
	}
	if _, err := env.engine.GetLoan(env.nftMint, env.owner, env.lender, id); err == nil {
		t.Fatalf("expected corrupt state to be rejected")
	}
}
