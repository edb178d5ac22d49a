package ledger

import (
	"fmt"
	"strings"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeExternal AccountScope = iota
	AccountScopeSystem
	AccountScopeParticipant
	AccountScopeRecipient
)

func (s AccountScope) String() string {
	switch s {
	case AccountScopeExternal:
		return "external"
	case AccountScopeSystem:
		return "system"
	case AccountScopeParticipant:
		return "participant"
	case AccountScopeRecipient:
		return "recipient"
	default:
		return "unknown"
	}
}

// AccountKey identifies a quote account.
//
// Paths:
//
//	external:fees              quote entering from the fee source
//	system:treasury:<owner>    distributor-held quote
//	participant:<destination>  investor payouts
//	recipient:<destination>    creator remainders
type AccountKey struct {
	Scope AccountScope
	Owner string
}

// FeeSourceKey is the external boundary every claim is credited from.
func FeeSourceKey() AccountKey {
	return AccountKey{Scope: AccountScopeExternal, Owner: "fees"}
}

func NewTreasuryKey(owner string) AccountKey {
	return AccountKey{Scope: AccountScopeSystem, Owner: "treasury:" + owner}
}

func NewParticipantKey(destination string) AccountKey {
	return AccountKey{Scope: AccountScopeParticipant, Owner: destination}
}

func NewRecipientKey(destination string) AccountKey {
	return AccountKey{Scope: AccountScopeRecipient, Owner: destination}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	return k.Scope.String() + ":" + k.Owner
}

// ParseAccountPath is the inverse of AccountPath.
func ParseAccountPath(path string) (AccountKey, error) {
	scope, owner, ok := strings.Cut(path, ":")
	if !ok || owner == "" {
		return AccountKey{}, fmt.Errorf("malformed account path %q", path)
	}

	switch scope {
	case "external":
		return AccountKey{Scope: AccountScopeExternal, Owner: owner}, nil
	case "system":
		return AccountKey{Scope: AccountScopeSystem, Owner: owner}, nil
	case "participant":
		return AccountKey{Scope: AccountScopeParticipant, Owner: owner}, nil
	case "recipient":
		return AccountKey{Scope: AccountScopeRecipient, Owner: owner}, nil
	}
	return AccountKey{}, fmt.Errorf("unknown account scope %q in %q", scope, path)
}
