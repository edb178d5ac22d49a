package distribution

import (
	"fmt"
)

// CloseResult records how a day was closed.
type CloseResult struct {
	Remainder uint64 `json:"remainder"`
	Recipient string `json:"recipient"`
	ClosedAt  int64  `json:"closed_at"`
	NextDayID int64  `json:"next_day_id"`
}

// CloseDay settles the day on its final page: the undistributed balance
// (claim minus payouts minus dust) goes to the recipient, and the record
// rolls its day id forward. Totals of the closed day are left in place.
func CloseDay(p *DayProgress, recipient string, now int64) (*CloseResult, error) {
	if p.Closed {
		return nil, dayGateError("day %d is already closed", p.DayKey)
	}

	remainder, err := p.Undistributed()
	if err != nil {
		return nil, err
	}
	if remainder > 0 && recipient == "" {
		return nil, configError("final page of day %d needs a recipient for remainder %d", p.DayKey, remainder)
	}

	p.RemainderPaid = remainder
	p.LastDistributionTs = now
	p.DayID = p.DayKey + 1
	p.Closed = true
	p.ClosedAt = now

	return &CloseResult{
		Remainder: remainder,
		Recipient: recipient,
		ClosedAt:  now,
		NextDayID: p.DayID,
	}, nil
}

// RemainderTransfer builds the treasury-to-recipient transfer, or nil when
// there is nothing left.
func (c *CloseResult) RemainderTransfer(from string, dayKey int64, pageKey string) *Transfer {
	if c.Remainder == 0 {
		return nil
	}
	return &Transfer{
		From:      from,
		To:        c.Recipient,
		Amount:    c.Remainder,
		Kind:      TransferRemainder,
		DayKey:    dayKey,
		PageKey:   pageKey,
		Reference: fmt.Sprintf("%d:close", dayKey),
	}
}
