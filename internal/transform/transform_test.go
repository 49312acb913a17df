package transform

import (
	"context"
	"strings"
	"testing"

	"transferScope/internal/decode"
	"transferScope/internal/model"
)

type memBronze struct {
	records map[string][]model.RawTransactionRecord
}

func (m *memBronze) Scan(token string, fn func(model.RawTransactionRecord) error) error {
	for _, record := range m.records[token] {
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}

type memSilver struct {
	partitions map[string][]model.DecodedTransaction
	writes     int
}

func (m *memSilver) WritePartition(token, month string, records []model.DecodedTransaction) error {
	if m.partitions == nil {
		m.partitions = make(map[string][]model.DecodedTransaction)
	}
	m.partitions[token+"/"+month] = records
	m.writes++
	return nil
}

func testRegistry(t *testing.T) *decode.Registry {
	t.Helper()
	registry, err := decode.NewRegistry(map[string][]decode.Rule{
		"erc20": {{
			Selector: "0xa9059cbb",
			Method:   "transfer",
			Slots: []decode.Slot{
				{Type: decode.SlotAddress, Role: decode.RoleReceiver},
				{Type: decode.SlotUint256, Role: decode.RoleAmount},
			},
		}},
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

func transferInput(receiver, amount string) string {
	pad := func(hex string) string { return strings.Repeat("0", 64-len(hex)) + hex }
	return "0xa9059cbb" + pad(receiver) + pad(amount)
}

func rawRecord(hash string, index, block, ts uint64, input string) model.RawTransactionRecord {
	return model.RawTransactionRecord{
		Hash:          hash,
		InternalIndex: index,
		BlockNumber:   block,
		Timestamp:     ts,
		From:          "0xcccccccccccccccccccccccccccccccccccccccc",
		To:            "0x1111111111111111111111111111111111111111",
		Input:         input,
		IsError:       "0",
	}
}

func TestStageDedupsAcrossFiles(t *testing.T) {
	input := transferInput("effb809d99142ce3b51c1796c096f5b01b4aaec4", "de0b6b3a7640000")
	// The same record persisted twice by overlapping ingestion batches.
	bronze := &memBronze{records: map[string][]model.RawTransactionRecord{
		"TEST": {
			rawRecord("0xa1", 0, 100, 1704067200, input),
			rawRecord("0xa1", 0, 100, 1704067200, input),
			rawRecord("0xa2", 0, 101, 1704067300, input),
		},
	}}
	silver := &memSilver{}
	stage := NewStage(bronze, silver, decode.NewDecoder(testRegistry(t)), nil)

	if err := stage.RunToken(context.Background(), testToken()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := silver.partitions["TEST/2024-01"]
	if len(got) != 2 {
		t.Fatalf("partition has %d records, want 2 after dedup", len(got))
	}
}

func TestStagePartitionsByMonthAndOrders(t *testing.T) {
	input := transferInput("effb809d99142ce3b51c1796c096f5b01b4aaec4", "64")
	bronze := &memBronze{records: map[string][]model.RawTransactionRecord{
		"TEST": {
			rawRecord("0xb3", 0, 300, 1706745660, input), // 2024-02
			rawRecord("0xb2", 0, 200, 1704067300, input), // 2024-01
			rawRecord("0xb1", 0, 100, 1704067200, input), // 2024-01
		},
	}}
	silver := &memSilver{}
	stage := NewStage(bronze, silver, decode.NewDecoder(testRegistry(t)), nil)

	if err := stage.RunToken(context.Background(), testToken()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if silver.writes != 2 {
		t.Fatalf("wrote %d partitions, want 2", silver.writes)
	}
	jan := silver.partitions["TEST/2024-01"]
	if len(jan) != 2 || jan[0].Hash != "0xb1" || jan[1].Hash != "0xb2" {
		t.Fatalf("january partition not block-ordered: %+v", jan)
	}
	feb := silver.partitions["TEST/2024-02"]
	if len(feb) != 1 || feb[0].Hash != "0xb3" {
		t.Fatalf("february partition wrong: %+v", feb)
	}
}

func TestStageUnknownSelectorFallsThrough(t *testing.T) {
	bronze := &memBronze{records: map[string][]model.RawTransactionRecord{
		"TEST": {
			rawRecord("0xc1", 0, 100, 1704067200, "0xdeadbeef"),
		},
	}}
	silver := &memSilver{}
	stage := NewStage(bronze, silver, decode.NewDecoder(testRegistry(t)), nil)

	if err := stage.RunToken(context.Background(), testToken()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := silver.partitions["TEST/2024-01"]
	if len(got) != 1 {
		t.Fatalf("unknown record must still land in silver, got %d", len(got))
	}
	if got[0].Method != model.MethodUnknown {
		t.Fatalf("method = %q, want unknown", got[0].Method)
	}
	if got[0].Input != "0xdeadbeef" {
		t.Fatalf("raw input must be preserved for unknown records")
	}
}

func TestStageEmptyTokenWritesNothing(t *testing.T) {
	bronze := &memBronze{records: map[string][]model.RawTransactionRecord{}}
	silver := &memSilver{}
	stage := NewStage(bronze, silver, decode.NewDecoder(testRegistry(t)), nil)

	if err := stage.RunToken(context.Background(), testToken()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if silver.writes != 0 {
		t.Fatalf("empty token should not touch silver, wrote %d partitions", silver.writes)
	}
}
