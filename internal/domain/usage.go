package domain

// UsageRecord is a single relay invocation as stored in the usage ledger.
// It never carries conversation content.
type UsageRecord struct {
	PK            string
	SK            string
	CorrelationID string
	Model         string
	Status        int
	InputTokens   int
	OutputTokens  int
	LatencyMillis int64
	TTL           int64
}

// DailyUsage aggregates the usage ledger for one UTC day.
type DailyUsage struct {
	Day          string
	Requests     int
	InputTokens  int
	OutputTokens int
}
