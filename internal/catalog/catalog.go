package catalog

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/dariak/consentshare/internal/domain"
)

// ErrUnknownParty indicates a fetch for a party outside the registered
// enumeration.
var ErrUnknownParty = errors.New("unknown party")

// ConsentChecker reports whether a pair currently holds active consent. The
// catalog derives summary visibility from it at read time instead of storing
// a visibility flag that could go stale.
type ConsentChecker interface {
	Active(individualID, partyID string) bool
}

const shardCount = 32

type shard struct {
	mu        sync.RWMutex
	summaries map[domain.SummaryKey]domain.AggregateSummary
}

// Catalog stores computed summaries keyed by (individual, party, dataType)
// and serves them per party, gated by active consent. The map is sharded by
// pair so unrelated individuals and parties never contend on one lock.
type Catalog struct {
	checker ConsentChecker
	parties map[string]struct{}
	shards  [shardCount]*shard
}

// New constructs a Catalog serving the registered parties.
func New(checker ConsentChecker, parties []string) *Catalog {
	partySet := make(map[string]struct{}, len(parties))
	for _, p := range parties {
		partySet[p] = struct{}{}
	}

	c := &Catalog{checker: checker, parties: partySet}
	for i := range c.shards {
		c.shards[i] = &shard{summaries: make(map[domain.SummaryKey]domain.AggregateSummary)}
	}
	return c
}

// Publish stores the summaries, overwriting any prior entry with the same
// key. Publishing an identical batch twice leaves the catalog unchanged.
func (c *Catalog) Publish(summaries []domain.AggregateSummary) {
	for _, summary := range summaries {
		sh := c.shardFor(summary.IndividualID, summary.PartyID)
		sh.mu.Lock()
		sh.summaries[summary.Key()] = summary
		sh.mu.Unlock()
	}
}

// FetchForParty returns every stored summary for the party whose owning
// consent record is currently active, ordered by individual then data type.
// An empty result is a valid answer, not an error.
func (c *Catalog) FetchForParty(partyID string) ([]domain.AggregateSummary, error) {
	if _, ok := c.parties[partyID]; !ok {
		return nil, ErrUnknownParty
	}

	result := make([]domain.AggregateSummary, 0)
	for _, sh := range c.shards {
		sh.mu.RLock()
		for key, summary := range sh.summaries {
			if key.PartyID != partyID {
				continue
			}
			if !c.checker.Active(key.IndividualID, key.PartyID) {
				continue
			}
			result = append(result, summary)
		}
		sh.mu.RUnlock()
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].IndividualID != result[j].IndividualID {
			return result[i].IndividualID < result[j].IndividualID
		}
		return result[i].DataType < result[j].DataType
	})
	return result, nil
}

// Withdraw removes every summary stored for the pair. Fetches stop returning
// them immediately; consent revocation additionally hides them at read time,
// so withdrawal and gating never disagree for long.
func (c *Catalog) Withdraw(individualID, partyID string) {
	sh := c.shardFor(individualID, partyID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for key := range sh.summaries {
		if key.IndividualID == individualID && key.PartyID == partyID {
			delete(sh.summaries, key)
		}
	}
}

// Parties returns the registered party enumeration in sorted order.
func (c *Catalog) Parties() []string {
	parties := make([]string, 0, len(c.parties))
	for p := range c.parties {
		parties = append(parties, p)
	}
	sort.Strings(parties)
	return parties
}

// KnownParty reports whether the party is registered.
func (c *Catalog) KnownParty(partyID string) bool {
	_, ok := c.parties[partyID]
	return ok
}

func (c *Catalog) shardFor(individualID, partyID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(individualID))
	h.Write([]byte{0})
	h.Write([]byte(partyID))
	return c.shards[h.Sum32()%shardCount]
}
