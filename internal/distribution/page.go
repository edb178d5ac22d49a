package distribution

import (
	fpmath "FeeDistributor/internal/math"
	"fmt"
)

// PayoutLine is one participant's outcome within a page.
type PayoutLine struct {
	StreamID    string `json:"stream_id"`
	Destination string `json:"destination"`
	Locked      uint64 `json:"locked"`
	Amount      uint64 `json:"amount"`
	Withheld    bool   `json:"withheld"`
}

// PageInput is one page's participants with their locked amounts, in order.
type PageInput struct {
	Participants    []ParticipantRecord
	Locked          []uint64
	PageLockedTotal uint64
	EffectiveQuote  uint64
	MinPayout       uint64
}

// PageResult holds the computed lines and totals. Distributed is what
// transfers will move; Withheld is dust that joins carry_over.
type PageResult struct {
	Payouts     []PayoutLine `json:"payouts"`
	Distributed uint64       `json:"distributed"`
	Withheld    uint64       `json:"withheld"`
}

// DistributePage splits EffectiveQuote across the page by locked weight.
// Participants with nothing locked get no line. A payout that is zero or
// below MinPayout is withheld.
func DistributePage(in PageInput) (*PageResult, error) {
	if len(in.Locked) != len(in.Participants) {
		return nil, fmt.Errorf("%w: %d participants but %d locked amounts",
			ErrInvariant, len(in.Participants), len(in.Locked))
	}

	result := &PageResult{Payouts: make([]PayoutLine, 0, len(in.Participants))}
	if in.PageLockedTotal == 0 {
		return result, nil
	}

	shares, _, err := fpmath.ProRataSplit(in.EffectiveQuote, in.Locked, in.PageLockedTotal)
	if err != nil {
		return nil, arithmeticError("page split", err)
	}

	for i, share := range shares {
		if share.Weight == 0 {
			continue
		}

		line := PayoutLine{
			StreamID:    in.Participants[i].StreamID,
			Destination: in.Participants[i].Destination,
			Locked:      share.Weight,
			Amount:      share.Amount,
		}

		if share.Amount > 0 && share.Amount >= in.MinPayout {
			if result.Distributed, err = fpmath.CheckedAdd(result.Distributed, share.Amount); err != nil {
				return nil, arithmeticError("page distributed", err)
			}
		} else {
			line.Withheld = true
			if result.Withheld, err = fpmath.CheckedAdd(result.Withheld, share.Amount); err != nil {
				return nil, arithmeticError("page withheld", err)
			}
		}

		result.Payouts = append(result.Payouts, line)
	}

	return result, nil
}

// Transfers returns one treasury transfer per paid (non-withheld) line.
func (r *PageResult) Transfers(from string, dayKey int64, pageKey string) []Transfer {
	transfers := make([]Transfer, 0, len(r.Payouts))
	for i, line := range r.Payouts {
		if line.Withheld {
			continue
		}
		transfers = append(transfers, Transfer{
			From:      from,
			To:        line.Destination,
			Amount:    line.Amount,
			Kind:      TransferParticipantPayout,
			DayKey:    dayKey,
			PageKey:   pageKey,
			Reference: fmt.Sprintf("%d:%s:%d", dayKey, pageKey, i),
		})
	}
	return transfers
}
