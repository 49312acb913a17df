package decode

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"transferScope/internal/model"
)

const wordSize = 32

// Decoder turns raw calldata into structured transfer fields using the
// rule registry. Decoding is a pure function of (record, rule set, decimals):
// identical inputs always produce identical output.
type Decoder struct {
	registry *Registry
}

// NewDecoder builds a decoder over an immutable registry.
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{registry: registry}
}

// Decode resolves the record's selector against the token's rule set and
// walks the rule's slots over the 32-byte words of the input. An unresolved
// selector or truncated input yields the unknown fallback with the raw input
// retained for audit; it is never an error.
func (d *Decoder) Decode(record model.RawTransactionRecord, token model.TokenConfig) model.DecodedTransaction {
	out := model.DecodedTransaction{
		Hash:          strings.ToLower(record.Hash),
		InternalIndex: record.InternalIndex,
		BlockNumber:   record.BlockNumber,
		Timestamp:     record.Timestamp,
		Month:         model.MonthKey(record.Timestamp),
		Token:         token.Symbol,
		Caller:        strings.ToLower(record.From),
		Value:         record.Value,
		GasUsed:       record.GasUsed,
	}

	data, selector, ok := splitCalldata(record.Input)
	if !ok {
		return unknownFallback(out, record)
	}

	rule, ok := d.registry.Resolve(token.RuleSet, selector)
	if !ok {
		return unknownFallback(out, record)
	}
	if len(data) < len(rule.Slots)*wordSize {
		return unknownFallback(out, record)
	}

	out.Method = rule.Method
	// A transfer with no sender slot means the caller moved its own funds.
	out.Sender = out.Caller
	out.Receiver = strings.ToLower(record.To)

	for i, slot := range rule.Slots {
		word := data[i*wordSize : (i+1)*wordSize]
		switch slot.Role {
		case RoleSender:
			if slot.Type == SlotAddress {
				out.Sender = wordToAddress(word)
			}
		case RoleReceiver:
			if slot.Type == SlotAddress {
				out.Receiver = wordToAddress(word)
			}
		case RoleAmount:
			if slot.Type == SlotUint256 {
				raw := new(big.Int).SetBytes(word)
				out.RawAmount = raw.String()
				out.Amount = scaleAmount(raw, token.Decimals)
			}
		case RoleIgnored:
		}
	}

	return out
}

func unknownFallback(out model.DecodedTransaction, record model.RawTransactionRecord) model.DecodedTransaction {
	out.Method = model.MethodUnknown
	out.Input = strings.ToLower(record.Input)
	return out
}

// splitCalldata separates the 4-byte selector from the argument words.
func splitCalldata(input string) (data []byte, selector string, ok bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	raw, err := hexutil.Decode(input)
	if err != nil || len(raw) < 4 {
		return nil, "", false
	}
	return raw[4:], hexutil.Encode(raw[:4]), true
}

func wordToAddress(word []byte) string {
	return strings.ToLower(common.BytesToAddress(word[wordSize-common.AddressLength:]).Hex())
}

// scaleAmount divides by 10^decimals and renders the exact decimal string.
func scaleAmount(raw *big.Int, decimals uint8) string {
	if decimals == 0 {
		return raw.String()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).SetFrac(raw, denom)
	out := scaled.FloatString(int(decimals))
	out = strings.TrimRight(out, "0")
	out = strings.TrimSuffix(out, ".")
	if out == "" {
		return "0"
	}
	return out
}
