package model

import "time"

// MethodUnknown tags records whose calldata could not be resolved to a rule.
const MethodUnknown = "unknown"

// MonthKey derives the calendar-month partition key from a unix timestamp.
func MonthKey(timestamp uint64) string {
	return time.Unix(int64(timestamp), 0).UTC().Format("2006-01")
}

// DecodedTransaction is the silver-layer projection of one raw record.
// It is derived, never written back into the bronze layer.
type DecodedTransaction struct {
	Hash          string `json:"hash"`
	InternalIndex uint64 `json:"internal_index"`
	BlockNumber   uint64 `json:"block_number"`
	Timestamp     uint64 `json:"timestamp"`
	Month         string `json:"month"`
	Token         string `json:"token"`
	Method        string `json:"method"`
	Caller        string `json:"caller"`
	Sender        string `json:"sender,omitempty"`
	Receiver      string `json:"receiver,omitempty"`
	RawAmount     string `json:"raw_amount,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Value         string `json:"value,omitempty"`
	GasUsed       uint64 `json:"gas_used,omitempty"`
	Input         string `json:"input,omitempty"`
}
