package lending

// Basis-point denominator for fee and interest rates.
const basisPoints = 10_000

// checkedMul multiplies two uint64 amounts, failing instead of wrapping.
func checkedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/a != b {
		return 0, ErrAmountOverflow
	}
	return product, nil
}

// checkedAdd adds two uint64 amounts, failing instead of wrapping.
func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// bpsShare computes amount * rateBps / 10000 with a checked multiplication.
// The division truncates, matching the protocol's accounting.
func bpsShare(amount, rateBps uint64) (uint64, error) {
	product, err := checkedMul(amount, rateBps)
	if err != nil {
		return 0, err
	}
	return product / basisPoints, nil
}
