package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"adaptivePool/internal/oracle"
)

// HookFlags selects which lifecycle hooks the pool invokes.
type HookFlags uint8

const (
	HookBeforeInitialize HookFlags = 1 << iota
	HookAfterInitialize
	HookBeforeSwap
	HookAfterSwap
	HookBeforeModifyPosition
	HookAfterModifyPosition
	// HookDynamicFee lets the plugin overwrite the fee in global state.
	HookDynamicFee
)

// Has reports whether every flag in f is set.
func (h HookFlags) Has(f HookFlags) bool {
	return h&f == f
}

// Hooks is the plugin interface. Every method receives the calling pool's
// address and the staged state of the call in progress; a non-nil error
// aborts the whole call.
type Hooks interface {
	Address() common.Address
	BeforeInitialize(caller common.Address, st *HookState, sqrtPriceX96 *big.Int) error
	AfterInitialize(caller common.Address, st *HookState, sqrtPriceX96 *big.Int, tick int32) error
	BeforeSwap(caller common.Address, st *HookState, params SwapParams) error
	AfterSwap(caller common.Address, st *HookState, params SwapParams, amount0, amount1 *big.Int) error
	BeforeModifyPosition(caller common.Address, st *HookState, params ModifyPositionParams) error
	AfterModifyPosition(caller common.Address, st *HookState, params ModifyPositionParams, amount0, amount1 *big.Int) error
}

// ModifyPositionParams describes a mint (positive delta) or burn (negative delta).
type ModifyPositionParams struct {
	Owner          common.Address
	TickLower      int32
	TickUpper      int32
	LiquidityDelta *big.Int
}

// HookState is the view of an in-flight call handed to hooks. Writes land in
// the call's staged state and are discarded if the call fails.
type HookState struct {
	tx  *txn
	now uint32
}

// BlockTimestamp is the timestamp of the call.
func (h *HookState) BlockTimestamp() uint32 {
	return h.now
}

func (h *HookState) Tick() int32 {
	return h.tx.state.Tick
}

func (h *HookState) Fee() uint16 {
	return h.tx.state.Fee
}

// SetFee replaces the fee used by the rest of the call. It is ignored unless
// the pool runs with HookDynamicFee.
func (h *HookState) SetFee(fee uint16) {
	if !h.tx.state.PluginConfig.Has(HookDynamicFee) {
		return
	}
	h.tx.state.Fee = fee
}

func (h *HookState) TimepointIndex() uint16 {
	return h.tx.state.TimepointIndex
}

func (h *HookState) SetTimepointIndex(i uint16) {
	h.tx.state.TimepointIndex = i
}

// Timepoints returns the staged oracle ring of the pool.
func (h *HookState) Timepoints() *oracle.Buffer {
	return h.tx.timepoints
}
