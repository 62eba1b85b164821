package model

import (
	"encoding/json"
	"testing"
)

func TestTypedEventRecordKeepsStringAmounts(t *testing.T) {
	ev := TypedEvent{
		ChainID:     56,
		BlockNumber: 36000000,
		TxHash:      "0xdef456",
		LogIndex:    12,
		Address:     "0x1111111111111111111111111111111111111111",
		EventName:   EventSwap,
		Timestamp:   1700000000,
		Decoded: SwapEventData{
			Sender:       "0x1111111111111111111111111111111111111111",
			Recipient:    "0x2222222222222222222222222222222222222222",
			Amount0:      "12345678901234567890",
			Amount1:      "-42",
			SqrtPriceX96: "79228162514264337593543950336",
			Liquidity:    "5000000000000000000",
			Tick:         10,
		},
		Raw: &RawLogRef{Topic0: "0xc42079f9", Data: "0x"},
	}

	rec, err := ev.Record()
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.EventName != EventSwap || rec.LogIndex != 12 || rec.Timestamp != 1700000000 {
		t.Fatalf("header mismatch: %+v", rec)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(rec.Decoded, &fields); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	for _, key := range []string{"amount0", "amount1", "sqrt_price_x96", "liquidity"} {
		if _, ok := fields[key].(string); !ok {
			t.Fatalf("%s should be a string, got %T", key, fields[key])
		}
	}

	var swap SwapEventData
	if err := json.Unmarshal(rec.Decoded, &swap); err != nil {
		t.Fatalf("unmarshal swap: %v", err)
	}
	if swap != ev.Decoded.(SwapEventData) {
		t.Fatalf("payload mismatch: %+v", swap)
	}
}

func TestLogRecordTopic0(t *testing.T) {
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("anonymous log topic0 = %q", got)
	}
	lr := LogRecord{Topics: []string{"0xaaa", "0xbbb"}}
	if got := lr.Topic0(); got != "0xaaa" {
		t.Fatalf("topic0 = %q", got)
	}
}
