package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"adaptivePool/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases for forks that renamed an event,
	// e.g. {"0x19b4...": "swap"}.
	Topic0Map map[string]string
}

// PoolDecoder decodes pool events without any chain access.
type PoolDecoder struct {
	abi         abi.ABI
	topicToName map[string]string
}

var _ Decoder = (*PoolDecoder)(nil)

func NewPoolDecoder(cfg DecoderConfig) (*PoolDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(parsed.Events)+len(cfg.Topic0Map))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	for topic0, alias := range cfg.Topic0Map {
		name := canonicalEventName(parsed, alias)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", alias)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PoolDecoder{abi: parsed, topicToName: topicToName}, nil
}

func canonicalEventName(parsed abi.ABI, alias string) string {
	alias = strings.TrimSpace(alias)
	for name := range parsed.Events {
		if strings.EqualFold(name, alias) {
			return name
		}
	}
	return ""
}

// CanDecode reports whether topic0 names a known pool event.
func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *PoolDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	topic0 := log.Topic0()
	if topic0 == "" {
		return nil, fmt.Errorf("missing topics: %w", ErrMalformedLog)
	}
	name, ok := d.topicToName[strings.ToLower(topic0)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTopic, topic0)
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address %q: %w", log.Address, ErrMalformedLog)
	}

	args, err := d.unpack(d.abi.Events[name], log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var decoded any
	switch name {
	case model.EventSwap:
		decoded, err = swapFrom(args)
	case model.EventMint:
		decoded, err = mintFrom(args)
	case model.EventBurn:
		decoded, err = burnFrom(args)
	case model.EventCollect:
		decoded, err = collectFrom(args)
	case model.EventFlash:
		decoded, err = flashFrom(args)
	case model.EventFee:
		decoded, err = feeFrom(args)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedTopic, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     common.HexToAddress(log.Address).Hex(),
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         &model.RawLogRef{Topic0: topic0, Data: log.Data},
	}, nil
}

// unpack collects indexed and data arguments into one map keyed by ABI name.
func (d *PoolDecoder) unpack(event abi.Event, log model.LogRecord) (fields, error) {
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d: %w", len(indexed)+1, len(log.Topics), ErrMalformedLog)
	}
	topics := make([]common.Hash, 0, len(indexed))
	for _, topic := range log.Topics[1:] {
		raw, err := hexutil.Decode(topic)
		if err != nil || len(raw) > common.HashLength {
			return nil, fmt.Errorf("invalid topic %q: %w", topic, ErrMalformedLog)
		}
		topics = append(topics, common.BytesToHash(raw))
	}

	out := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(out, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", ErrMalformedLog)
	}
	if err := d.abi.UnpackIntoMap(out, event.Name, data); err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	return fields(out), nil
}

// fields is an unpacked event keyed by ABI argument name.
type fields map[string]interface{}

func (f fields) address(name string) (string, error) {
	v, ok := f[name].(common.Address)
	if !ok {
		return "", fmt.Errorf("field %s: unexpected %T", name, f[name])
	}
	return v.Hex(), nil
}

func (f fields) integer(name string) (*big.Int, error) {
	switch v := f[name].(type) {
	case *big.Int:
		return v, nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("field %s: unexpected %T", name, f[name])
	}
}

func (f fields) decimal(name string) (string, error) {
	v, err := f.integer(name)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (f fields) int24(name string) (int32, error) {
	v, err := f.integer(name)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() || v.Int64() < -(1<<23) || v.Int64() >= 1<<23 {
		return 0, fmt.Errorf("field %s: %s out of int24 range", name, v)
	}
	return int32(v.Int64()), nil
}

// collect runs the getters in order and stops at the first error.
func collect(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func str(dst *string, get func(string) (string, error), name string) func() error {
	return func() (err error) {
		*dst, err = get(name)
		return err
	}
}

func tick(dst *int32, f fields, name string) func() error {
	return func() (err error) {
		*dst, err = f.int24(name)
		return err
	}
}

func swapFrom(f fields) (model.SwapEventData, error) {
	var ev model.SwapEventData
	err := collect(
		str(&ev.Sender, f.address, "sender"),
		str(&ev.Recipient, f.address, "recipient"),
		str(&ev.Amount0, f.decimal, "amount0"),
		str(&ev.Amount1, f.decimal, "amount1"),
		str(&ev.SqrtPriceX96, f.decimal, "sqrtPriceX96"),
		str(&ev.Liquidity, f.decimal, "liquidity"),
		tick(&ev.Tick, f, "tick"),
	)
	return ev, err
}

func mintFrom(f fields) (model.MintEventData, error) {
	var ev model.MintEventData
	err := collect(
		str(&ev.Sender, f.address, "sender"),
		str(&ev.Owner, f.address, "owner"),
		tick(&ev.TickLower, f, "tickLower"),
		tick(&ev.TickUpper, f, "tickUpper"),
		str(&ev.Amount, f.decimal, "amount"),
		str(&ev.Amount0, f.decimal, "amount0"),
		str(&ev.Amount1, f.decimal, "amount1"),
	)
	return ev, err
}

func burnFrom(f fields) (model.BurnEventData, error) {
	var ev model.BurnEventData
	err := collect(
		str(&ev.Owner, f.address, "owner"),
		tick(&ev.TickLower, f, "tickLower"),
		tick(&ev.TickUpper, f, "tickUpper"),
		str(&ev.Amount, f.decimal, "amount"),
		str(&ev.Amount0, f.decimal, "amount0"),
		str(&ev.Amount1, f.decimal, "amount1"),
	)
	return ev, err
}

func collectFrom(f fields) (model.CollectEventData, error) {
	var ev model.CollectEventData
	err := collect(
		str(&ev.Owner, f.address, "owner"),
		str(&ev.Recipient, f.address, "recipient"),
		tick(&ev.TickLower, f, "tickLower"),
		tick(&ev.TickUpper, f, "tickUpper"),
		str(&ev.Amount0, f.decimal, "amount0"),
		str(&ev.Amount1, f.decimal, "amount1"),
	)
	return ev, err
}

func flashFrom(f fields) (model.FlashEventData, error) {
	var ev model.FlashEventData
	err := collect(
		str(&ev.Sender, f.address, "sender"),
		str(&ev.Recipient, f.address, "recipient"),
		str(&ev.Amount0, f.decimal, "amount0"),
		str(&ev.Amount1, f.decimal, "amount1"),
		str(&ev.Paid0, f.decimal, "paid0"),
		str(&ev.Paid1, f.decimal, "paid1"),
	)
	return ev, err
}

func feeFrom(f fields) (model.FeeEventData, error) {
	v, err := f.integer("fee")
	if err != nil {
		return model.FeeEventData{}, err
	}
	if !v.IsUint64() || v.Uint64() > 0xffff {
		return model.FeeEventData{}, fmt.Errorf("field fee: %s out of uint16 range", v)
	}
	return model.FeeEventData{Fee: uint16(v.Uint64())}, nil
}
