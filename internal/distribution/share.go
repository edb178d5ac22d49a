package distribution

import (
	fpmath "FeeDistributor/internal/math"
	"errors"
)

// ShareInput carries everything the share formula reads. It is a value so
// ComputeShare stays a pure function.
type ShareInput struct {
	PageLockedTotal       uint64
	Y0                    uint64
	InvestorFeeShareBps   uint64
	ClaimedQuote          uint64
	DailyCap              *uint64
	CumulativeDistributed uint64
	CarryOver             uint64
	Mode                  LockedTotalMode
	DayLockedTotal        uint64
}

// ShareResult is the breakdown of how the page's distributable amount was reached.
type ShareResult struct {
	LockedBps        uint64 `json:"locked_bps"`
	InvestorFeeQuote uint64 `json:"investor_fee_quote"`
	CapHeadroom      uint64 `json:"cap_headroom,omitempty"`
	Capped           bool   `json:"capped"`
	Undistributed    uint64 `json:"undistributed"`
	EffectiveQuote   uint64 `json:"effective_quote"`
}

// ComputeShare derives the amount one page may distribute.
//
//	f_locked_bps       = min(bps, floor(locked * 10000 / Y0))
//	investor_fee_quote = floor(claimed * f_locked_bps / 10000)
//	effective          = min(investor_fee_quote, cap - cumulative, claimed - cumulative - carry)
//
// In whole_day mode locked is the declared day total and the page receives
// floor(day_quote * page_locked / day_locked).
func ComputeShare(in ShareInput) (ShareResult, error) {
	var res ShareResult

	if in.Y0 == 0 {
		return res, configError("Y0 must be non-zero")
	}
	if in.InvestorFeeShareBps > fpmath.BpsDenominator {
		return res, configError("investor_fee_share_bps %d exceeds %d", in.InvestorFeeShareBps, fpmath.BpsDenominator)
	}

	gatingLocked := in.PageLockedTotal
	if in.Mode == LockedTotalWholeDay {
		if in.DayLockedTotal == 0 {
			return res, configError("%s accounting requires day_locked_total", LockedTotalWholeDay)
		}
		if in.PageLockedTotal > in.DayLockedTotal {
			return res, configError("page locked %d exceeds day locked total %d", in.PageLockedTotal, in.DayLockedTotal)
		}
		gatingLocked = in.DayLockedTotal
	}

	// Step 1: locked-fraction gate. A ratio too large for uint64 is far above
	// any bps value, so the min resolves to the configured share.
	lockedBps, err := fpmath.MulDivFloor(gatingLocked, fpmath.BpsDenominator, in.Y0)
	switch {
	case errors.Is(err, fpmath.ErrOverflow):
		lockedBps = in.InvestorFeeShareBps
	case err != nil:
		return res, arithmeticError("locked fraction", err)
	}
	res.LockedBps = min(in.InvestorFeeShareBps, lockedBps)

	// Step 2: investor share of the claim.
	quote, err := fpmath.MulDivFloor(in.ClaimedQuote, res.LockedBps, fpmath.BpsDenominator)
	if err != nil {
		return res, arithmeticError("investor fee quote", err)
	}
	if in.Mode == LockedTotalWholeDay {
		quote, err = fpmath.MulDivFloor(quote, in.PageLockedTotal, in.DayLockedTotal)
		if err != nil {
			return res, arithmeticError("page slice of day quote", err)
		}
	}
	res.InvestorFeeQuote = quote

	// Step 3: daily cap.
	effective := quote
	if in.DailyCap != nil {
		res.CapHeadroom = fpmath.SaturatingSub(*in.DailyCap, in.CumulativeDistributed)
		if res.CapHeadroom < effective {
			effective = res.CapHeadroom
			res.Capped = true
		}
	}

	// Step 4: never hand out more than is left of the claim.
	spent, err := fpmath.CheckedAdd(in.CumulativeDistributed, in.CarryOver)
	if err != nil {
		return res, arithmeticError("cumulative + carry", err)
	}
	if spent > in.ClaimedQuote {
		return res, invariantError("distributed %d + carry %d exceeds claimed %d",
			in.CumulativeDistributed, in.CarryOver, in.ClaimedQuote)
	}
	res.Undistributed = in.ClaimedQuote - spent
	res.EffectiveQuote = min(effective, res.Undistributed)

	return res, nil
}
