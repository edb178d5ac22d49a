package distribution

import (
	fpmath "FeeDistributor/internal/math"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// LockedTotalMode selects which locked total gates the investor share.
type LockedTotalMode string

const (
	// LockedTotalPerPage gates every page by that page's own locked total.
	LockedTotalPerPage LockedTotalMode = "per_page"

	// LockedTotalWholeDay gates by a caller-declared day-wide locked total and
	// gives each page the slice of the day's investor quote its locked total earns.
	LockedTotalWholeDay LockedTotalMode = "whole_day"
)

// PolicyParameters must be identical on every page of one day.
type PolicyParameters struct {
	Y0                  uint64          `json:"y0"`
	InvestorFeeShareBps uint64          `json:"investor_fee_share_bps"`
	DailyCap            *uint64         `json:"daily_cap,omitempty"`
	MinPayout           uint64          `json:"min_payout"`
	LockedTotalMode     LockedTotalMode `json:"locked_total_mode,omitempty"`
	DayLockedTotal      uint64          `json:"day_locked_total,omitempty"`
}

// Mode returns the locked-total mode, defaulting to per_page.
func (p PolicyParameters) Mode() LockedTotalMode {
	if p.LockedTotalMode == "" {
		return LockedTotalPerPage
	}
	return p.LockedTotalMode
}

// Validate checks the policy in isolation.
func (p PolicyParameters) Validate() error {
	if p.Y0 == 0 {
		return configError("Y0 must be non-zero")
	}
	if p.InvestorFeeShareBps > fpmath.BpsDenominator {
		return configError("investor_fee_share_bps %d exceeds %d", p.InvestorFeeShareBps, fpmath.BpsDenominator)
	}

	switch p.Mode() {
	case LockedTotalPerPage:
		if p.DayLockedTotal != 0 {
			return configError("day_locked_total is only valid with %s accounting", LockedTotalWholeDay)
		}
	case LockedTotalWholeDay:
		if p.DayLockedTotal == 0 {
			return configError("%s accounting requires day_locked_total", LockedTotalWholeDay)
		}
	default:
		return configError("unknown locked_total_mode %q", p.LockedTotalMode)
	}
	return nil
}

// Fingerprint is a stable hex digest of every field. Two pages of the same
// day must carry policies with equal fingerprints.
func (p PolicyParameters) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	writeU64(p.Y0)
	writeU64(p.InvestorFeeShareBps)
	if p.DailyCap != nil {
		h.Write([]byte{1})
		writeU64(*p.DailyCap)
	} else {
		h.Write([]byte{0})
	}
	writeU64(p.MinPayout)
	h.Write([]byte(p.Mode()))
	writeU64(p.DayLockedTotal)

	return hex.EncodeToString(h.Sum(nil))
}
