package lending

import "fmt"

// Params are the pool's tunable economics. Zero values mean "keep the
// current setting" so a partially populated config section only overrides
// what it names.
type Params struct {
	DepositIncentive uint64 `toml:"DepositIncentive"`
	MaxLoanDuration  int64  `toml:"MaxLoanDuration"`
	ServiceFeeRate   uint64 `toml:"ServiceFeeRate"`
	InterestRate     uint64 `toml:"InterestRate"`
}

// Validate rejects settings the engine cannot honour.
func (p Params) Validate() error {
	if p.MaxLoanDuration < 0 {
		return fmt.Errorf("lending: max loan duration must not be negative: %d", p.MaxLoanDuration)
	}
	if p.ServiceFeeRate > basisPoints {
		return fmt.Errorf("lending: service fee rate exceeds %d basis points: %d", basisPoints, p.ServiceFeeRate)
	}
	if p.InterestRate > basisPoints {
		return fmt.Errorf("lending: interest rate exceeds %d basis points: %d", basisPoints, p.InterestRate)
	}
	return nil
}

func (p Params) apply(pool *Pool) {
	if pool == nil {
		return
	}
	if p.DepositIncentive != 0 {
		pool.DepositIncentive = p.DepositIncentive
	}
	if p.MaxLoanDuration != 0 {
		pool.MaxLoanDuration = p.MaxLoanDuration
	}
	if p.ServiceFeeRate != 0 {
		pool.ServiceFeeRate = p.ServiceFeeRate
	}
	if p.InterestRate != 0 {
		pool.InterestRate = p.InterestRate
	}
}
