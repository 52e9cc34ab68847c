package domain

import "time"

// Metrics maps statistic names to aggregated values. Every value must be
// derivable purely from aggregate statistics over the transaction sequence
// (or pre-banded profile attributes); raw transaction fields never appear.
type Metrics map[string]any

// AggregateSummary is the de-identified artifact shared with a party. It is
// produced exclusively by the aggregation engine on an active-consent
// transition and keyed by (IndividualID, PartyID, DataType).
type AggregateSummary struct {
	IndividualID string
	PartyID      string
	DataType     DataType
	Metrics      Metrics
	SampleSize   int
	GeneratedAt  time.Time
}

// SummaryKey is the catalog key of an AggregateSummary.
type SummaryKey struct {
	IndividualID string
	PartyID      string
	DataType     DataType
}

// Key returns the catalog key for the summary.
func (s AggregateSummary) Key() SummaryKey {
	return SummaryKey{
		IndividualID: s.IndividualID,
		PartyID:      s.PartyID,
		DataType:     s.DataType,
	}
}
