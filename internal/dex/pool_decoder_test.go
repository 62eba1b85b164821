package dex

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"adaptivePool/internal/model"
)

var testPool = common.HexToAddress("0x1111111111111111111111111111111111111111")

func newTestDecoder(t *testing.T) *PoolDecoder {
	t.Helper()
	decoder, err := NewPoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return decoder
}

func packEvent(t *testing.T, name string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := parsed.Events[name].Inputs.NonIndexed().Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", name, err)
	}
	return data
}

func eventLog(t *testing.T, name string, data []byte, indexed ...common.Hash) model.LogRecord {
	t.Helper()
	parsed, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	topics := []string{parsed.Events[name].ID.Hex()}
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}
	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 12345,
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     testPool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func TestPoolDecoderSwap(t *testing.T) {
	decoder := newTestDecoder(t)
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data := packEvent(t, model.EventSwap,
		big.NewInt(-1000), big.NewInt(2000), big.NewInt(123456789), big.NewInt(987654321), big.NewInt(-15))
	event, err := decoder.Decode(eventLog(t, model.EventSwap, data, topicFromAddress(sender), topicFromAddress(recipient)))
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.SqrtPriceX96 != "123456789" || swap.Liquidity != "987654321" {
		t.Fatalf("price fields mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if event.EventName != model.EventSwap || event.Address != testPool.Hex() || event.Timestamp != 1700000000 {
		t.Fatalf("header mismatch: %+v", event)
	}
}

func TestPoolDecoderPositionEvents(t *testing.T) {
	decoder := newTestDecoder(t)
	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	mintData := packEvent(t, model.EventMint, sender, big.NewInt(5000), big.NewInt(100), big.NewInt(200))
	mintEvent, err := decoder.Decode(eventLog(t, model.EventMint, mintData,
		topicFromAddress(owner), topicFromInt24(-120), topicFromInt24(120)))
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	mint := mintEvent.Decoded.(model.MintEventData)
	if mint.TickLower != -120 || mint.TickUpper != 120 || mint.Amount != "5000" {
		t.Fatalf("mint mismatch: %+v", mint)
	}
	if mint.Sender != sender.Hex() || mint.Owner != owner.Hex() {
		t.Fatalf("mint addresses mismatch: %+v", mint)
	}

	burnData := packEvent(t, model.EventBurn, big.NewInt(7000), big.NewInt(300), big.NewInt(400))
	burnEvent, err := decoder.Decode(eventLog(t, model.EventBurn, burnData,
		topicFromAddress(owner), topicFromInt24(-60), topicFromInt24(60)))
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	burn := burnEvent.Decoded.(model.BurnEventData)
	if burn.Amount != "7000" || burn.Amount0 != "300" || burn.TickLower != -60 {
		t.Fatalf("burn mismatch: %+v", burn)
	}

	collectData := packEvent(t, model.EventCollect, recipient, big.NewInt(900), big.NewInt(1000))
	collectEvent, err := decoder.Decode(eventLog(t, model.EventCollect, collectData,
		topicFromAddress(owner), topicFromInt24(-10), topicFromInt24(10)))
	if err != nil {
		t.Fatalf("decode collect: %v", err)
	}
	collect := collectEvent.Decoded.(model.CollectEventData)
	if collect.Amount0 != "900" || collect.Amount1 != "1000" || collect.Recipient != recipient.Hex() {
		t.Fatalf("collect mismatch: %+v", collect)
	}
}

func TestPoolDecoderFlashAndFee(t *testing.T) {
	decoder := newTestDecoder(t)
	sender := common.HexToAddress("0x4444444444444444444444444444444444444444")
	recipient := common.HexToAddress("0x5555555555555555555555555555555555555555")

	flashData := packEvent(t, model.EventFlash, big.NewInt(10), big.NewInt(20), big.NewInt(1), big.NewInt(2))
	flashEvent, err := decoder.Decode(eventLog(t, model.EventFlash, flashData,
		topicFromAddress(sender), topicFromAddress(recipient)))
	if err != nil {
		t.Fatalf("decode flash: %v", err)
	}
	flash := flashEvent.Decoded.(model.FlashEventData)
	if flash.Amount1 != "20" || flash.Paid0 != "1" || flash.Paid1 != "2" {
		t.Fatalf("flash mismatch: %+v", flash)
	}

	feeEvent, err := decoder.Decode(eventLog(t, model.EventFee, packEvent(t, model.EventFee, uint16(3000))))
	if err != nil {
		t.Fatalf("decode fee: %v", err)
	}
	if got := feeEvent.Decoded.(model.FeeEventData).Fee; got != 3000 {
		t.Fatalf("fee = %d", got)
	}
}

func TestPoolDecoderRejectsBadLogs(t *testing.T) {
	decoder := newTestDecoder(t)

	unknown := model.LogRecord{Address: testPool.Hex(), Topics: []string{common.HexToHash("0x01").Hex()}, Data: "0x"}
	if decoder.CanDecode(unknown.Topic0()) {
		t.Fatalf("unknown topic accepted")
	}
	if _, err := decoder.Decode(unknown); !errors.Is(err, ErrUnsupportedTopic) {
		t.Fatalf("unknown topic: %v", err)
	}

	if _, err := decoder.Decode(model.LogRecord{Address: testPool.Hex()}); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("missing topics: %v", err)
	}

	data := packEvent(t, model.EventBurn, big.NewInt(1), big.NewInt(1), big.NewInt(1))
	short := eventLog(t, model.EventBurn, data, topicFromInt24(-60))
	if _, err := decoder.Decode(short); !errors.Is(err, ErrMalformedLog) {
		t.Fatalf("short topics: %v", err)
	}
}

func TestPoolDecoderTopicAliases(t *testing.T) {
	alias := common.HexToHash("0xfeed").Hex()
	decoder, err := NewPoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: " collect "}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(alias) {
		t.Fatalf("alias not registered")
	}

	if _, err := NewPoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "Transfer"}}); err == nil {
		t.Fatalf("unknown event name accepted")
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	v := big.NewInt(int64(value))
	if value < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(v)
}
