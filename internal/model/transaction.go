package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RawTransactionRecord is the normalized representation of one explorer
// transaction row. A hash can carry several transfers; InternalIndex
// disambiguates them, so identity is (Hash, InternalIndex).
type RawTransactionRecord struct {
	Hash          string `json:"hash"`
	InternalIndex uint64 `json:"internal_index"`
	BlockNumber   uint64 `json:"block_number"`
	Timestamp     uint64 `json:"timestamp"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`
	Input         string `json:"input"`
	MethodID      string `json:"method_id"`
	FunctionName  string `json:"function_name"`
	Gas           uint64 `json:"gas"`
	GasPrice      string `json:"gas_price"`
	GasUsed       uint64 `json:"gas_used"`
	IsError       string `json:"is_error"`
	IngestedAt    string `json:"ingested_at"`
}

// Key returns the record identity used for deduplication.
func (r RawTransactionRecord) Key() string {
	return fmt.Sprintf("%s:%d", strings.ToLower(r.Hash), r.InternalIndex)
}

// rawTransactionAlias accepts both the bronze field names and the explorer
// API field names, with numbers encoded as either JSON strings or numbers.
// Historical bronze files may miss fields entirely; those default to zero.
type rawTransactionAlias struct {
	Hash          string     `json:"hash"`
	InternalIndex flexUint64 `json:"internal_index"`
	BlockNumber   flexUint64 `json:"block_number"`
	BlockNumberV1 flexUint64 `json:"blockNumber"`
	Timestamp     flexUint64 `json:"timestamp"`
	TimestampV1   flexUint64 `json:"timeStamp"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	Value         string     `json:"value"`
	Input         string     `json:"input"`
	MethodID      string     `json:"method_id"`
	MethodIDV1    string     `json:"methodId"`
	FunctionName  string     `json:"function_name"`
	FunctionV1    string     `json:"functionName"`
	Gas           flexUint64 `json:"gas"`
	GasPrice      string     `json:"gas_price"`
	GasPriceV1    string     `json:"gasPrice"`
	GasUsed       flexUint64 `json:"gas_used"`
	GasUsedV1     flexUint64 `json:"gasUsed"`
	IsError       string     `json:"is_error"`
	IsErrorV1     string     `json:"isError"`
	IngestedAt    string     `json:"ingested_at"`
}

// UnmarshalJSON reconciles fields by name across schema revisions.
func (r *RawTransactionRecord) UnmarshalJSON(data []byte) error {
	var a rawTransactionAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	*r = RawTransactionRecord{
		Hash:          strings.ToLower(a.Hash),
		InternalIndex: uint64(a.InternalIndex),
		BlockNumber:   uint64(firstUint64(a.BlockNumber, a.BlockNumberV1)),
		Timestamp:     uint64(firstUint64(a.Timestamp, a.TimestampV1)),
		From:          strings.ToLower(a.From),
		To:            strings.ToLower(a.To),
		Value:         a.Value,
		Input:         strings.ToLower(a.Input),
		MethodID:      strings.ToLower(firstString(a.MethodID, a.MethodIDV1)),
		FunctionName:  firstString(a.FunctionName, a.FunctionV1),
		Gas:           uint64(a.Gas),
		GasPrice:      firstString(a.GasPrice, a.GasPriceV1),
		GasUsed:       uint64(firstUint64(a.GasUsed, a.GasUsedV1)),
		IsError:       firstString(a.IsError, a.IsErrorV1),
		IngestedAt:    a.IngestedAt,
	}
	return nil
}

// flexUint64 decodes from a JSON number, a quoted decimal string, or null.
type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse numeric field %q: %w", s, err)
		}
		*f = flexUint64(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexUint64(v)
	return nil
}

func firstUint64(values ...flexUint64) flexUint64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
