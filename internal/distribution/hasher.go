package distribution

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
)

const GenesisHashSeed = "FeeDistributor:day:v1"

// PageKey identifies a page for replay detection. A caller-supplied index
// wins; otherwise the key is a digest of the ordered participant set.
func PageKey(index *uint32, participants []ParticipantRecord) string {
	if index != nil {
		return "idx:" + strconv.FormatUint(uint64(*index), 10)
	}

	h := sha256.New()
	var lenBuf [4]byte
	for _, p := range participants {
		for _, field := range []string{p.StreamID, p.Destination} {
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(field)))
			h.Write(lenBuf[:])
			h.Write([]byte(field))
		}
	}
	return "fp:" + hex.EncodeToString(h.Sum(nil))
}

// ReceiptHasher chains page receipts of one day:
// hash[n] = SHA-256(prev_hash || cursor || receipt_digest).
type ReceiptHasher struct {
	prevHash [32]byte
}

// NewReceiptHasher resumes a chain from a stored hex tip, or starts a new
// one seeded by the day key when tip is empty.
func NewReceiptHasher(dayKey int64, tip string) (*ReceiptHasher, error) {
	h := &ReceiptHasher{}
	if tip == "" {
		h.prevHash = sha256.Sum256([]byte(fmt.Sprintf("%s:%d", GenesisHashSeed, dayKey)))
		return h, nil
	}

	raw, err := hex.DecodeString(tip)
	if err != nil || len(raw) != sha256.Size {
		return nil, invariantError("stored receipt hash %q is not a sha256 hex digest", tip)
	}
	copy(h.prevHash[:], raw)
	return h, nil
}

// ComputeHash appends one receipt to the chain and returns the new tip.
func (h *ReceiptHasher) ComputeHash(cursor uint64, digest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], cursor)
	hasher.Write(seqBuf[:])

	hasher.Write(digest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	h.prevHash = hash
	return hash
}

// Tip returns the current chain head as hex.
func (h *ReceiptHasher) Tip() string {
	return hex.EncodeToString(h.prevHash[:])
}

// receiptDigest covers the money-moving fields of a receipt.
func receiptDigest(r *PageReceipt) []byte {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	h.Write([]byte(r.PageKey))
	put(r.EffectiveQuote)
	put(r.PageDistributed)
	put(r.PageWithheld)
	for _, line := range r.Payouts {
		h.Write([]byte(line.Destination))
		put(line.Amount)
		if line.Withheld {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	put(r.Remainder)
	return h.Sum(nil)
}
