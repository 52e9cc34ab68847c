package domain

// DataType identifies one statistic category an individual can authorize for
// sharing. The set is closed: every value must map to a fixed aggregation
// transformation, so unknown strings are rejected at consent submission.
type DataType string

const (
	// DataTypeCategorySpending groups spending by transaction category.
	DataTypeCategorySpending DataType = "category_spending"
	// DataTypeAverageBill summarises transaction amounts (mean/min/max/count).
	DataTypeAverageBill DataType = "average_bill"
	// DataTypeSpendingFrequency reports how often the individual transacts.
	DataTypeSpendingFrequency DataType = "spending_frequency"
	// DataTypeAgeGroupStats exposes banded demographic statistics.
	DataTypeAgeGroupStats DataType = "age_group_stats"
)

// KnownDataTypes lists every data type with an aggregation transformation.
func KnownDataTypes() []DataType {
	return []DataType{
		DataTypeCategorySpending,
		DataTypeAverageBill,
		DataTypeSpendingFrequency,
		DataTypeAgeGroupStats,
	}
}

// ParseDataType validates a raw scope string against the closed enumeration.
func ParseDataType(raw string) (DataType, bool) {
	dt := DataType(raw)
	switch dt {
	case DataTypeCategorySpending, DataTypeAverageBill, DataTypeSpendingFrequency, DataTypeAgeGroupStats:
		return dt, true
	default:
		return "", false
	}
}
