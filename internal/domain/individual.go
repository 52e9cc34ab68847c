package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single entry in an individual's transaction history.
// The sequence is owned by the external system of record and is immutable
// once recorded; this backend only ever reads it.
type Transaction struct {
	ID           string
	Amount       decimal.Decimal
	Category     string
	Counterparty string
	Timestamp    time.Time
}

// Individual holds the identity attributes of a data subject. Transaction
// history is fetched separately so callers that only need identity data do
// not drag the full sequence along.
type Individual struct {
	ID           string
	FullName     string
	AgeGroup     string
	City         string
	TotalBalance decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
