package plugin

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"adaptivePool/internal/fee"
	"adaptivePool/internal/oracle"
	"adaptivePool/internal/pool"
	"adaptivePool/internal/pricemath"
)

var (
	poolAddr         = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	pluginAddr       = common.HexToAddress("0x00000000000000000000000000000000000000ab")
	ownerAddr        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	feeManager       = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	incentiveManager = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	lpAddr           = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	stranger         = common.HexToAddress("0x00000000000000000000000000000000000000dd")

	oneE18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

type recordingIncentive struct {
	addr  common.Address
	ticks []int32
	dirs  []bool
	err   error
}

func (r *recordingIncentive) Address() common.Address { return r.addr }

func (r *recordingIncentive) CrossTo(tick int32, zeroForOne bool) error {
	if r.err != nil {
		return r.err
	}
	r.ticks = append(r.ticks, tick)
	r.dirs = append(r.dirs, zeroForOne)
	return nil
}

func payOwed(_ context.Context, amount0, amount1 *big.Int, _ []byte) (pool.Payment, error) {
	pay := pool.Payment{Amount0: new(big.Int), Amount1: new(big.Int)}
	if amount0.Sign() > 0 {
		pay.Amount0.Set(amount0)
	}
	if amount1.Sign() > 0 {
		pay.Amount1.Set(amount1)
	}
	return pay, nil
}

type fixture struct {
	pool   *pool.Pool
	plugin *Plugin
	clock  *pool.ManualClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := pool.NewManualClock(1_700_000_000)
	p, err := pool.New(pool.Config{
		Address:     poolAddr,
		Owner:       ownerAddr,
		TickSpacing: 60,
		Clock:       clock,
	}, nil)
	require.NoError(t, err)

	pl, err := New(Config{
		Address:          pluginAddr,
		FeeManager:       feeManager,
		IncentiveManager: incentiveManager,
		Fee:              fee.DefaultConfiguration(),
	}, p, nil)
	require.NoError(t, err)

	require.NoError(t, p.AttachHooks(ownerAddr, pl, DefaultHookFlags))
	require.NoError(t, p.Initialize(new(big.Int).Set(pricemath.Q96)))
	_, _, err = p.Mint(context.Background(), pool.MintParams{
		Owner: lpAddr, TickLower: -1200, TickUpper: 1200, Amount: oneE18, Settle: payOwed,
	})
	require.NoError(t, err)
	return fixture{pool: p, plugin: pl, clock: clock}
}

func (f fixture) swapTo(t *testing.T, tick int32) (pool.SwapResult, error) {
	t.Helper()
	limit, err := pricemath.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return f.pool.Swap(context.Background(), pool.SwapParams{
		ZeroForOne:        tick < f.pool.State().Tick,
		AmountSpecified:   oneE18,
		SqrtPriceLimitX96: limit,
		Settle:            payOwed,
	})
}

func TestInitializeSeedsOracleAndFee(t *testing.T) {
	f := newFixture(t)
	st := f.pool.State()
	require.Equal(t, uint16(100), st.Fee)
	require.Equal(t, uint16(0), st.TimepointIndex)

	ticks, vols, err := f.pool.Observe([]uint32{0})
	require.NoError(t, err)
	require.Equal(t, int64(0), ticks[0])
	require.Equal(t, 0, vols[0].Sign())
}

func TestHooksRejectOtherCallers(t *testing.T) {
	f := newFixture(t)

	require.True(t, errors.Is(f.plugin.BeforeSwap(stranger, nil, pool.SwapParams{}), pool.ErrUnauthorized))
	require.True(t, errors.Is(f.plugin.AfterSwap(stranger, nil, pool.SwapParams{}, nil, nil), pool.ErrUnauthorized))
	require.True(t, errors.Is(f.plugin.AfterInitialize(stranger, nil, nil, 0), pool.ErrUnauthorized))
	require.True(t, errors.Is(f.plugin.BeforeInitialize(stranger, nil, nil), pool.ErrUnauthorized))
	require.True(t, errors.Is(f.plugin.BeforeModifyPosition(stranger, nil, pool.ModifyPositionParams{}), pool.ErrUnauthorized))
	require.True(t, errors.Is(f.plugin.AfterModifyPosition(stranger, nil, pool.ModifyPositionParams{}, nil, nil), pool.ErrUnauthorized))
}

func TestPluginBoundElsewhereBlocksInitialize(t *testing.T) {
	other, err := pool.New(pool.Config{Address: stranger, TickSpacing: 60}, nil)
	require.NoError(t, err)
	p, err := pool.New(pool.Config{Address: poolAddr, Owner: ownerAddr, TickSpacing: 60}, nil)
	require.NoError(t, err)

	pl, err := New(Config{Address: pluginAddr, Fee: fee.DefaultConfiguration()}, other, nil)
	require.NoError(t, err)
	require.NoError(t, p.AttachHooks(ownerAddr, pl, DefaultHookFlags))

	err = p.Initialize(pricemath.Q96)
	require.True(t, errors.Is(err, pool.ErrUnauthorized))
	require.False(t, p.State().Initialized())
}

func TestAttachHooksRequiresOwner(t *testing.T) {
	p, err := pool.New(pool.Config{Address: poolAddr, Owner: ownerAddr, TickSpacing: 60}, nil)
	require.NoError(t, err)
	pl, err := New(Config{Address: pluginAddr, Fee: fee.DefaultConfiguration()}, p, nil)
	require.NoError(t, err)

	require.True(t, errors.Is(p.AttachHooks(stranger, pl, DefaultHookFlags), pool.ErrUnauthorized))

	f := newFixture(t)
	require.True(t, errors.Is(f.pool.AttachHooks(ownerAddr, pl, DefaultHookFlags), pool.ErrAlreadyInitialized))
}

func TestFeeTracksVolatility(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now()

	f.clock.Advance(10)
	_, err := f.swapTo(t, -600)
	require.NoError(t, err)
	st := f.pool.State()
	require.Equal(t, int32(-600), st.Tick)
	require.Equal(t, uint16(1), st.TimepointIndex)
	// the timepoint carries the pre-swap tick, so nothing has moved yet
	require.Equal(t, uint16(100), st.Fee)

	f.clock.Advance(10)
	_, err = f.swapTo(t, -540)
	require.NoError(t, err)
	st = f.pool.State()
	require.Equal(t, uint16(2), st.TimepointIndex)

	// (-600 - 0)^2 over 10 seconds, averaged over the 20 seconds of history
	vol, err := f.pool.AverageVolatility()
	require.NoError(t, err)
	require.Equal(t, uint64(600*600*10/20), vol)
	require.Equal(t, fee.Fee(vol, fee.DefaultConfiguration()), st.Fee)
	require.Greater(t, st.Fee, uint16(3000))

	ticks, vols, err := f.pool.Observe([]uint32{0, 10, 20})
	require.NoError(t, err)
	require.Equal(t, []int64{-6000, 0, 0}, ticks)
	require.Equal(t, int64(3_600_000), vols[0].Int64())
	require.Equal(t, 0, vols[1].Sign())

	_, _, err = f.pool.Observe([]uint32{f.clock.Now() - start + 1})
	require.True(t, errors.Is(err, oracle.ErrTargetTooOld))
}

func TestSameTimestampWritesOnce(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(30)

	_, err := f.swapTo(t, -600)
	require.NoError(t, err)
	first := f.pool.State()

	_, err = f.swapTo(t, 0)
	require.NoError(t, err)
	_, _, err = f.pool.Burn(pool.BurnParams{Owner: lpAddr, TickLower: -1200, TickUpper: 1200, Amount: big.NewInt(1)})
	require.NoError(t, err)

	second := f.pool.State()
	require.Equal(t, first.TimepointIndex, second.TimepointIndex)
	require.Equal(t, first.Fee, second.Fee)
}

func TestSetFeeConfiguration(t *testing.T) {
	f := newFixture(t)

	cfg := fee.DefaultConfiguration()
	cfg.Alpha1, cfg.Alpha2, cfg.BaseFee = 0, 0, 500
	require.True(t, errors.Is(f.plugin.SetFeeConfiguration(stranger, cfg), pool.ErrUnauthorized))

	bad := cfg
	bad.Gamma1 = 0
	require.True(t, errors.Is(f.plugin.SetFeeConfiguration(feeManager, bad), fee.ErrZeroGamma))

	require.NoError(t, f.plugin.SetFeeConfiguration(feeManager, cfg))
	require.Equal(t, uint16(100), f.pool.State().Fee, "takes effect on the next write")

	f.clock.Advance(5)
	_, err := f.swapTo(t, -600)
	require.NoError(t, err)
	f.clock.Advance(5)
	_, err = f.swapTo(t, 600)
	require.NoError(t, err)
	require.Equal(t, uint16(500), f.pool.State().Fee)
}

func TestIncentiveLifecycle(t *testing.T) {
	f := newFixture(t)
	inc := &recordingIncentive{addr: common.HexToAddress("0x00000000000000000000000000000000000000e1")}
	other := &recordingIncentive{addr: common.HexToAddress("0x00000000000000000000000000000000000000e2")}

	require.True(t, errors.Is(f.plugin.SetIncentive(stranger, inc), pool.ErrUnauthorized))
	require.True(t, errors.Is(f.plugin.SetIncentive(incentiveManager, nil), ErrIncentiveNotChanged))

	require.NoError(t, f.plugin.SetIncentive(incentiveManager, inc))
	require.True(t, f.pool.PluginConfig().Has(pool.HookAfterSwap))
	require.True(t, errors.Is(f.plugin.SetIncentive(incentiveManager, inc), ErrIncentiveNotChanged))
	require.True(t, errors.Is(f.plugin.SetIncentive(incentiveManager, other), ErrIncentiveAlreadyActive))

	f.clock.Advance(1)
	_, err := f.swapTo(t, -300)
	require.NoError(t, err)
	require.Equal(t, []int32{-300}, inc.ticks)
	require.Equal(t, []bool{true}, inc.dirs)

	require.NoError(t, f.plugin.SetIncentive(incentiveManager, nil))
	require.False(t, f.pool.PluginConfig().Has(pool.HookAfterSwap))
	require.True(t, f.pool.PluginConfig().Has(DefaultHookFlags))

	require.NoError(t, f.plugin.SetIncentive(incentiveManager, other))
	require.Equal(t, other, f.plugin.Incentive())
}

func TestIncentiveFailureRollsBackSwap(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("farming halted")
	inc := &recordingIncentive{addr: common.HexToAddress("0x00000000000000000000000000000000000000e1"), err: boom}
	require.NoError(t, f.plugin.SetIncentive(incentiveManager, inc))

	before := f.pool.State()
	f.clock.Advance(60)
	_, err := f.swapTo(t, -600)
	require.True(t, errors.Is(err, boom))

	after := f.pool.State()
	require.Equal(t, before.Tick, after.Tick)
	require.Equal(t, 0, before.SqrtPriceX96.Cmp(after.SqrtPriceX96))
	require.Equal(t, before.TimepointIndex, after.TimepointIndex, "the oracle write is discarded with the swap")
	require.Equal(t, before.Fee, after.Fee)
}
