package decode

import (
	"encoding/json"
	"strings"
	"testing"

	"transferScope/internal/model"
)

func erc20Registry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(map[string][]Rule{
		"erc20": {
			{
				Selector: "0xa9059cbb",
				Method:   "transfer",
				Slots: []Slot{
					{Type: SlotAddress, Role: RoleReceiver},
					{Type: SlotUint256, Role: RoleAmount},
				},
			},
			{
				Selector: "0x23b872dd",
				Method:   "transferFrom",
				Slots: []Slot{
					{Type: SlotAddress, Role: RoleSender},
					{Type: SlotAddress, Role: RoleReceiver},
					{Type: SlotUint256, Role: RoleAmount},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func testToken() model.TokenConfig {
	return model.TokenConfig{
		Symbol:   "TEST",
		Address:  "0x1111111111111111111111111111111111111111",
		Decimals: 18,
		RuleSet:  "erc20",
	}
}

func word(hex string) string {
	return strings.Repeat("0", 64-len(hex)) + hex
}

func TestDecodeTransfer(t *testing.T) {
	decoder := NewDecoder(erc20Registry(t))

	receiver := "effb809d99142ce3b51c1796c096f5b01b4aaec4"
	// 1.5 tokens at 18 decimals.
	amount := "14d1120d7b160000"
	record := model.RawTransactionRecord{
		Hash:        "0xAB01",
		BlockNumber: 123,
		Timestamp:   1771352294,
		From:        "0x731d3d5c016b7e04c43bb4dc3598ea90a6c37e81",
		To:          "0x1111111111111111111111111111111111111111",
		Input:       "0xa9059cbb" + word(receiver) + word(amount),
	}

	decoded := decoder.Decode(record, testToken())

	if decoded.Method != "transfer" {
		t.Fatalf("method = %q", decoded.Method)
	}
	if decoded.Sender != record.From {
		t.Fatalf("sender = %q, want caller %q", decoded.Sender, record.From)
	}
	if decoded.Receiver != "0x"+receiver {
		t.Fatalf("receiver = %q", decoded.Receiver)
	}
	if decoded.RawAmount != "1500000000000000000" {
		t.Fatalf("raw amount = %q", decoded.RawAmount)
	}
	if decoded.Amount != "1.5" {
		t.Fatalf("amount = %q", decoded.Amount)
	}
	if decoded.Month != "2026-02" {
		t.Fatalf("month = %q", decoded.Month)
	}
	if decoded.Input != "" {
		t.Fatalf("resolved decode should not retain raw input")
	}
}

func TestDecodeTransferFrom(t *testing.T) {
	decoder := NewDecoder(erc20Registry(t))

	sender := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	receiver := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	record := model.RawTransactionRecord{
		Hash:        "0xab02",
		BlockNumber: 124,
		Timestamp:   1771352294,
		From:        "0xcccccccccccccccccccccccccccccccccccccccc",
		To:          "0x1111111111111111111111111111111111111111",
		Input:       "0x23b872dd" + word(sender) + word(receiver) + word("64"),
	}

	decoded := decoder.Decode(record, testToken())

	if decoded.Method != "transferFrom" {
		t.Fatalf("method = %q", decoded.Method)
	}
	if decoded.Sender != "0x"+sender {
		t.Fatalf("sender = %q", decoded.Sender)
	}
	if decoded.Receiver != "0x"+receiver {
		t.Fatalf("receiver = %q", decoded.Receiver)
	}
	if decoded.RawAmount != "100" {
		t.Fatalf("raw amount = %q", decoded.RawAmount)
	}
	if decoded.Amount != "0.0000000000000001" {
		t.Fatalf("amount = %q", decoded.Amount)
	}
}

func TestDecodeUnknownSelector(t *testing.T) {
	decoder := NewDecoder(erc20Registry(t))

	record := model.RawTransactionRecord{
		Hash:        "0xab03",
		BlockNumber: 125,
		Timestamp:   1771352294,
		From:        "0xdddddddddddddddddddddddddddddddddddddddd",
		Input:       "0xdeadbeef" + word("1"),
	}

	decoded := decoder.Decode(record, testToken())

	if decoded.Method != model.MethodUnknown {
		t.Fatalf("method = %q, want unknown", decoded.Method)
	}
	if decoded.Sender != "" || decoded.Receiver != "" || decoded.Amount != "" {
		t.Fatalf("unknown decode should leave transfer fields unresolved: %+v", decoded)
	}
	if decoded.Input != record.Input {
		t.Fatalf("raw input must be preserved for audit")
	}
}

func TestDecodeTruncatedInput(t *testing.T) {
	decoder := NewDecoder(erc20Registry(t))

	// transfer selector but only one of two required words.
	record := model.RawTransactionRecord{
		Hash:      "0xab04",
		Timestamp: 1771352294,
		Input:     "0xa9059cbb" + word("1"),
	}

	decoded := decoder.Decode(record, testToken())
	if decoded.Method != model.MethodUnknown {
		t.Fatalf("truncated input should fall back to unknown, got %q", decoded.Method)
	}
	if decoded.Input != record.Input {
		t.Fatalf("raw input must be preserved for audit")
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	decoder := NewDecoder(erc20Registry(t))

	record := model.RawTransactionRecord{Hash: "0xab05", Timestamp: 1771352294, Input: "0x"}
	decoded := decoder.Decode(record, testToken())
	if decoded.Method != model.MethodUnknown {
		t.Fatalf("empty input should decode as unknown, got %q", decoded.Method)
	}
}

func TestDecodeDeterminism(t *testing.T) {
	decoder := NewDecoder(erc20Registry(t))

	record := model.RawTransactionRecord{
		Hash:        "0xab06",
		BlockNumber: 126,
		Timestamp:   1771352294,
		From:        "0x731d3d5c016b7e04c43bb4dc3598ea90a6c37e81",
		Input:       "0xa9059cbb" + word("effb809d99142ce3b51c1796c096f5b01b4aaec4") + word("de0b6b3a7640000"),
	}

	first, err := json.Marshal(decoder.Decode(record, testToken()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(decoder.Decode(record, testToken()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("decode not deterministic:\n%s\n%s", first, second)
	}
}

func TestScaleAmountWholeTokens(t *testing.T) {
	decoder := NewDecoder(erc20Registry(t))

	record := model.RawTransactionRecord{
		Hash:      "0xab07",
		Timestamp: 1771352294,
		From:      "0x731d3d5c016b7e04c43bb4dc3598ea90a6c37e81",
		// 1e18 exactly.
		Input: "0xa9059cbb" + word("effb809d99142ce3b51c1796c096f5b01b4aaec4") + word("de0b6b3a7640000"),
	}

	decoded := decoder.Decode(record, testToken())
	if decoded.Amount != "1" {
		t.Fatalf("amount = %q, want 1", decoded.Amount)
	}
}
