package ledger

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/zeebo/blake3"

	"adaptivePool/internal/staged"
)

// PositionKey identifies a position by owner and tick range.
type PositionKey struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
}

// ID is a stable 32-byte digest of the key, used as the persisted identifier.
func (k PositionKey) ID() [32]byte {
	h := blake3.New()
	h.Write(k.Owner.Bytes())

	var ticks [8]byte
	binary.BigEndian.PutUint32(ticks[:4], uint32(k.TickLower))
	binary.BigEndian.PutUint32(ticks[4:], uint32(k.TickUpper))
	h.Write(ticks[:])

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

func (k PositionKey) String() string {
	return fmt.Sprintf("%s[%d,%d]", k.Owner.Hex(), k.TickLower, k.TickUpper)
}

// Position is one owner's liquidity over a tick range.
type Position struct {
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 uint256.Int
	FeeGrowthInside1LastX128 uint256.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

func newPosition() *Position {
	return &Position{
		Liquidity:   new(big.Int),
		TokensOwed0: new(big.Int),
		TokensOwed1: new(big.Int),
	}
}

func (p *Position) Clone() *Position {
	cp := *p
	cp.Liquidity = new(big.Int).Set(p.Liquidity)
	cp.TokensOwed0 = new(big.Int).Set(p.TokensOwed0)
	cp.TokensOwed1 = new(big.Int).Set(p.TokensOwed1)
	return &cp
}

// Positions is the position table of one pool.
type Positions struct {
	m *staged.Map[PositionKey, *Position]
}

func NewPositions() *Positions {
	return &Positions{m: staged.New[PositionKey, *Position]((*Position).Clone)}
}

func (p *Positions) Stage() *Positions {
	return &Positions{m: p.m.Stage()}
}

func (p *Positions) Commit() {
	p.m.Commit()
}

// Get returns the position for key, or nil if it was never created.
func (p *Positions) Get(key PositionKey) *Position {
	pos, ok := p.m.Get(key)
	if !ok {
		return nil
	}
	return pos
}

func (p *Positions) Put(key PositionKey, pos *Position) {
	p.m.Set(key, pos)
}

func (p *Positions) Range(fn func(key PositionKey, pos *Position) bool) {
	p.m.Range(fn)
}

// Update credits the fees earned since the last snapshot, applies
// liquidityDelta, and records the new fee-growth-inside snapshot. The growth
// difference is taken modulo 2^256, so a wrapped accumulator still yields the
// correct amount.
func (p *Positions) Update(key PositionKey, liquidityDelta *big.Int, feeGrowthInside0, feeGrowthInside1 *uint256.Int) (*Position, error) {
	pos, ok := p.m.Get(key)
	if !ok {
		pos = newPosition()
	}

	var liquidityNext *big.Int
	if liquidityDelta.Sign() == 0 {
		if pos.Liquidity.Sign() == 0 {
			return nil, fmt.Errorf("poke %s: %w", key, ErrNoPositionLiquidity)
		}
		liquidityNext = pos.Liquidity
	} else {
		next, err := AddDelta(pos.Liquidity, liquidityDelta)
		if err != nil {
			return nil, fmt.Errorf("update position %s: %w", key, err)
		}
		liquidityNext = next
	}

	var diff0, diff1 uint256.Int
	diff0.Sub(feeGrowthInside0, &pos.FeeGrowthInside0LastX128)
	diff1.Sub(feeGrowthInside1, &pos.FeeGrowthInside1LastX128)
	owed0 := GrowthDelta(&diff0, pos.Liquidity)
	owed1 := GrowthDelta(&diff1, pos.Liquidity)

	pos.Liquidity = liquidityNext
	pos.FeeGrowthInside0LastX128 = *feeGrowthInside0
	pos.FeeGrowthInside1LastX128 = *feeGrowthInside1
	pos.TokensOwed0 = wrapAdd128(pos.TokensOwed0, owed0)
	pos.TokensOwed1 = wrapAdd128(pos.TokensOwed1, owed1)

	p.m.Set(key, pos)
	return pos, nil
}

func wrapAdd128(x, y *big.Int) *big.Int {
	z := new(big.Int).Add(x, y)
	return z.Mod(z, mod128)
}
