package domain

import (
	"sort"
	"time"
)

// ConsentRecord captures an individual's sharing decision for one party.
// At most one record exists per (IndividualID, PartyID) pair; resubmission
// replaces scopes and state in place. Revocation flips Active to false but
// never deletes the record, so the pair's history stays auditable.
type ConsentRecord struct {
	IndividualID string
	PartyID      string
	Scopes       []DataType
	Active       bool
	LastUpdated  time.Time
}

// HasScope reports whether the record grants the given data type.
func (r ConsentRecord) HasScope(dt DataType) bool {
	for _, s := range r.Scopes {
		if s == dt {
			return true
		}
	}
	return false
}

// NormalizeScopes returns a sorted copy with duplicates removed, so records
// compare deterministically regardless of submission order.
func NormalizeScopes(scopes []DataType) []DataType {
	seen := make(map[DataType]struct{}, len(scopes))
	out := make([]DataType, 0, len(scopes))
	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
