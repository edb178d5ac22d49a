package distribution

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// AccountIDLength is the decoded size of a base58 account identifier.
const AccountIDLength = 32

var ErrInvalidAccountID = errors.New("invalid account id")

// ParticipantRecord is one row of a page: the vesting stream that determines
// the participant's weight and the account their payout goes to.
type ParticipantRecord struct {
	StreamID    string `json:"stream_id"`
	Destination string `json:"destination"`
}

// ValidateAccountID checks that id is a base58-encoded 32-byte key.
func ValidateAccountID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAccountID)
	}
	raw, err := base58.Decode(id)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAccountID, id, err)
	}
	if len(raw) != AccountIDLength {
		return fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAccountID, id, len(raw))
	}
	return nil
}

// ValidateParticipants rejects malformed ids and a stream listed twice in one page.
func ValidateParticipants(participants []ParticipantRecord) error {
	seen := make(map[string]struct{}, len(participants))
	for i, p := range participants {
		if err := ValidateAccountID(p.StreamID); err != nil {
			return configError("participant %d stream: %v", i, err)
		}
		if err := ValidateAccountID(p.Destination); err != nil {
			return configError("participant %d destination: %v", i, err)
		}
		if _, dup := seen[p.StreamID]; dup {
			return configError("stream %s appears twice in page", p.StreamID)
		}
		seen[p.StreamID] = struct{}{}
	}
	return nil
}
