package math

// Share is one weighted claim on a pro-rata split.
type Share struct {
	Weight uint64
	Amount uint64
}

// ProRataSplit divides amount across weights as floor(w_i * amount / totalWeight).
// Rounding residue stays with the caller: the returned residual is
// amount - sum(shares), which is always < len(weights) when totalWeight
// equals the sum of weights.
func ProRataSplit(amount uint64, weights []uint64, totalWeight uint64) ([]Share, uint64, error) {
	shares := make([]Share, len(weights))
	if totalWeight == 0 || amount == 0 {
		for i, w := range weights {
			shares[i].Weight = w
		}
		return shares, amount, nil
	}

	var distributed uint64
	for i, w := range weights {
		shares[i].Weight = w
		if w == 0 {
			continue
		}
		part, err := MulDivFloor(w, amount, totalWeight)
		if err != nil {
			return nil, 0, err
		}
		shares[i].Amount = part
		if distributed, err = CheckedAdd(distributed, part); err != nil {
			return nil, 0, err
		}
	}

	residual, err := CheckedSub(amount, distributed)
	if err != nil {
		return nil, 0, err
	}
	return shares, residual, nil
}
