package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// poolEventsABI lists the events of a concentrated-liquidity pool with a
// dynamic fee. Swap, Mint, Burn, Collect and Flash share their signatures with
// Uniswap V3 pools, so logs from either family decode the same way.
const poolEventsABI = `[
  {"anonymous": false, "name": "Swap", "type": "event", "inputs": [
    {"indexed": true,  "name": "sender",       "type": "address"},
    {"indexed": true,  "name": "recipient",    "type": "address"},
    {"indexed": false, "name": "amount0",      "type": "int256"},
    {"indexed": false, "name": "amount1",      "type": "int256"},
    {"indexed": false, "name": "sqrtPriceX96", "type": "uint160"},
    {"indexed": false, "name": "liquidity",    "type": "uint128"},
    {"indexed": false, "name": "tick",         "type": "int24"}]},
  {"anonymous": false, "name": "Mint", "type": "event", "inputs": [
    {"indexed": false, "name": "sender",    "type": "address"},
    {"indexed": true,  "name": "owner",     "type": "address"},
    {"indexed": true,  "name": "tickLower", "type": "int24"},
    {"indexed": true,  "name": "tickUpper", "type": "int24"},
    {"indexed": false, "name": "amount",    "type": "uint128"},
    {"indexed": false, "name": "amount0",   "type": "uint256"},
    {"indexed": false, "name": "amount1",   "type": "uint256"}]},
  {"anonymous": false, "name": "Burn", "type": "event", "inputs": [
    {"indexed": true,  "name": "owner",     "type": "address"},
    {"indexed": true,  "name": "tickLower", "type": "int24"},
    {"indexed": true,  "name": "tickUpper", "type": "int24"},
    {"indexed": false, "name": "amount",    "type": "uint128"},
    {"indexed": false, "name": "amount0",   "type": "uint256"},
    {"indexed": false, "name": "amount1",   "type": "uint256"}]},
  {"anonymous": false, "name": "Collect", "type": "event", "inputs": [
    {"indexed": true,  "name": "owner",     "type": "address"},
    {"indexed": false, "name": "recipient", "type": "address"},
    {"indexed": true,  "name": "tickLower", "type": "int24"},
    {"indexed": true,  "name": "tickUpper", "type": "int24"},
    {"indexed": false, "name": "amount0",   "type": "uint128"},
    {"indexed": false, "name": "amount1",   "type": "uint128"}]},
  {"anonymous": false, "name": "Flash", "type": "event", "inputs": [
    {"indexed": true,  "name": "sender",    "type": "address"},
    {"indexed": true,  "name": "recipient", "type": "address"},
    {"indexed": false, "name": "amount0",   "type": "uint256"},
    {"indexed": false, "name": "amount1",   "type": "uint256"},
    {"indexed": false, "name": "paid0",     "type": "uint256"},
    {"indexed": false, "name": "paid1",     "type": "uint256"}]},
  {"anonymous": false, "name": "Fee", "type": "event", "inputs": [
    {"indexed": false, "name": "fee", "type": "uint16"}]}
]`

var (
	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error
)

// PoolABI returns the parsed pool event ABI.
func PoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolEventsABI))
	})
	return poolABI, poolABIErr
}
