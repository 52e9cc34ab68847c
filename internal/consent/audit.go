package consent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dariak/consentshare/internal/domain"
)

// Transition labels recorded in the audit trail.
const (
	TransitionGranted   = "granted"
	TransitionUpdated   = "updated"
	TransitionRevoked   = "revoked"
	TransitionRegranted = "regranted"
)

// AuditEntry is one immutable line of an individual's consent history.
// Entries are only ever appended; revocation is a new entry, not a deletion.
type AuditEntry struct {
	ID           string
	IndividualID string
	PartyID      string
	Scopes       []domain.DataType
	Active       bool
	Transition   string
	At           time.Time
}

type auditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

func (l *auditLog) append(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *auditLog) forIndividual(individualID string) []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []AuditEntry
	for _, entry := range l.entries {
		if entry.IndividualID == individualID {
			result = append(result, entry)
		}
	}
	return result
}

func auditEntryFor(record domain.ConsentRecord, previous domain.ConsentRecord, existed bool) AuditEntry {
	transition := TransitionGranted
	switch {
	case !record.Active:
		transition = TransitionRevoked
	case existed && previous.Active:
		transition = TransitionUpdated
	case existed && !previous.Active:
		transition = TransitionRegranted
	}

	return AuditEntry{
		ID:           uuid.NewString(),
		IndividualID: record.IndividualID,
		PartyID:      record.PartyID,
		Scopes:       append([]domain.DataType(nil), record.Scopes...),
		Active:       record.Active,
		Transition:   transition,
		At:           record.LastUpdated,
	}
}
