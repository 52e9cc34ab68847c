package consent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/records"
)

// ErrInvalidScope indicates a requested data category outside the closed
// enumeration, or an active submission with no scopes at all.
var ErrInvalidScope = errors.New("invalid consent scope")

// ErrConsentNotFound indicates no consent record exists for the pair.
var ErrConsentNotFound = errors.New("consent record not found")

// TransitionObserver is notified after every stored consent transition. The
// coordinator implements it to trigger recomputation and (re)publishing.
// A returned error is surfaced to the Submit caller; the stored record is
// not rolled back.
type TransitionObserver interface {
	ConsentChanged(ctx context.Context, record domain.ConsentRecord) error
}

// SubmitInput is a raw consent submission. Scopes arrive as strings because
// validation against the closed enumeration is this registry's job.
type SubmitInput struct {
	IndividualID string
	PartyID      string
	Scopes       []string
	Active       bool
}

// Registry owns the consent record lifecycle. Records are keyed by
// (individualID, partyID): resubmission replaces scope and state in place,
// revocation flips the active flag, and nothing is ever physically deleted.
// Every accepted transition is appended to an immutable audit trail.
type Registry struct {
	store    records.Store
	allowed  map[domain.DataType]struct{}
	observer TransitionObserver

	pairLocks *keyMutex
	mu        sync.RWMutex
	byPair    map[string]domain.ConsentRecord

	audit auditLog
	nowFn func() time.Time
}

// NewRegistry constructs a Registry validating individuals against store and
// scopes against the allowed data types.
func NewRegistry(store records.Store, allowed []domain.DataType) *Registry {
	allowedSet := make(map[domain.DataType]struct{}, len(allowed))
	for _, dt := range allowed {
		allowedSet[dt] = struct{}{}
	}
	return &Registry{
		store:     store,
		allowed:   allowedSet,
		pairLocks: newKeyMutex(),
		byPair:    make(map[string]domain.ConsentRecord),
		nowFn:     time.Now,
	}
}

// SetObserver wires the transition observer. Must be called before the first
// Submit; it exists as a setter because the coordinator and registry
// reference each other.
func (r *Registry) SetObserver(observer TransitionObserver) {
	r.observer = observer
}

// WithClock overrides the time provider (used primarily in tests).
func (r *Registry) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		r.nowFn = nowFn
	}
}

// Submit validates and upserts the consent record for the pair, then
// notifies the observer of the transition. The returned record reflects what
// was stored even when the observer reports a deferred aggregation error.
//
// The pair's transition lock is held across the upsert and the notification,
// so concurrent submissions for the same pair cannot interleave a stale
// recomputation over a newer consent's outcome. Different pairs proceed
// independently.
func (r *Registry) Submit(ctx context.Context, input SubmitInput) (domain.ConsentRecord, error) {
	if input.IndividualID == "" || input.PartyID == "" {
		return domain.ConsentRecord{}, fmt.Errorf("%w: individual and party IDs are required", ErrInvalidScope)
	}

	scopes, err := r.validateScopes(input.Scopes, input.Active)
	if err != nil {
		return domain.ConsentRecord{}, err
	}

	if _, err := r.store.GetIndividual(ctx, input.IndividualID); err != nil {
		if errors.Is(err, records.ErrIndividualNotFound) {
			return domain.ConsentRecord{}, fmt.Errorf("individual %s: %w", input.IndividualID, records.ErrIndividualNotFound)
		}
		return domain.ConsentRecord{}, fmt.Errorf("resolve individual %s: %w", input.IndividualID, err)
	}

	key := pairKey(input.IndividualID, input.PartyID)
	lock := r.pairLocks.lock(key)
	defer lock.Unlock()

	record := domain.ConsentRecord{
		IndividualID: input.IndividualID,
		PartyID:      input.PartyID,
		Scopes:       scopes,
		Active:       input.Active,
		LastUpdated:  r.nowFn().UTC(),
	}

	r.mu.Lock()
	previous, existed := r.byPair[key]
	r.byPair[key] = record
	r.mu.Unlock()

	r.audit.append(auditEntryFor(record, previous, existed))

	if r.observer != nil {
		if err := r.observer.ConsentChanged(ctx, record); err != nil {
			return record, err
		}
	}
	return record, nil
}

// Get returns the consent record for the pair, or ErrConsentNotFound.
func (r *Registry) Get(individualID, partyID string) (domain.ConsentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byPair[pairKey(individualID, partyID)]
	if !ok {
		return domain.ConsentRecord{}, ErrConsentNotFound
	}
	return record, nil
}

// ListForIndividual returns every consent record of the individual, ordered
// by party ID for deterministic display.
func (r *Registry) ListForIndividual(individualID string) []domain.ConsentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.ConsentRecord
	for _, record := range r.byPair {
		if record.IndividualID == individualID {
			result = append(result, record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PartyID < result[j].PartyID })
	return result
}

// Active reports whether the pair currently holds active consent. The
// catalog uses this to derive summary visibility at read time.
func (r *Registry) Active(individualID, partyID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byPair[pairKey(individualID, partyID)]
	return ok && record.Active
}

// AuditTrail returns the individual's consent transitions in order of
// occurrence.
func (r *Registry) AuditTrail(individualID string) []AuditEntry {
	return r.audit.forIndividual(individualID)
}

func (r *Registry) validateScopes(raw []string, active bool) ([]domain.DataType, error) {
	if active && len(raw) == 0 {
		return nil, fmt.Errorf("%w: active consent requires at least one scope", ErrInvalidScope)
	}

	scopes := make([]domain.DataType, 0, len(raw))
	for _, s := range raw {
		dt, ok := domain.ParseDataType(s)
		if !ok {
			return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalidScope, s)
		}
		if _, ok := r.allowed[dt]; !ok {
			return nil, fmt.Errorf("%w: data type %q is not enabled", ErrInvalidScope, s)
		}
		scopes = append(scopes, dt)
	}
	return domain.NormalizeScopes(scopes), nil
}

func pairKey(individualID, partyID string) string {
	return individualID + "\x00" + partyID
}
