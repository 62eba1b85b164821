package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"adaptivePool/internal/pricemath"
)

func TestRedactDSN(t *testing.T) {
	require.Equal(t, "postgres://pool:xxxxx@db:5432/adaptive", redactDSN("postgres://pool:secret@db:5432/adaptive"))
	require.Equal(t, "postgres://db/adaptive", redactDSN("postgres://db/adaptive"))
	require.Equal(t, "host=db user=pool", redactDSN("host=db user=pool"))
}

func TestFeeCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"fee", "--volatility", "0,5400", "--log-level", "error"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "0\t100\t0.01%", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "5400\t1550\t"))
}

func TestReplayThenInspect(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	target, err := pricemath.SqrtRatioAtTick(-600)
	require.NoError(t, err)
	lines := []string{
		`{"chain_id":56,"block_number":1,"tx_hash":"0x01","log_index":0,"address":"0x00000000000000000000000000000000000000aa","event_name":"Mint","timestamp":1000,` +
			`"decoded":{"sender":"0x00000000000000000000000000000000000000b1","owner":"0x00000000000000000000000000000000000000b1","tick_lower":-1200,"tick_upper":1200,"amount":"1000000000000000000"}}`,
		`{"chain_id":56,"block_number":2,"tx_hash":"0x02","log_index":0,"address":"0x00000000000000000000000000000000000000aa","event_name":"Swap","timestamp":1010,` +
			`"decoded":{"sender":"0x00000000000000000000000000000000000000c1","recipient":"0x00000000000000000000000000000000000000c1","amount0":"0","amount1":"0","sqrt_price_x96":"` + target.String() + `","liquidity":"1000000000000000000","tick":-600}}`,
	}
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	root := newRootCmd()
	root.SetArgs([]string{"replay",
		"--pool-address", "0x00000000000000000000000000000000000000aa",
		"--in", input,
		"--init-sqrt-price", pricemath.Q96.String(),
		"--snapshot-dir", filepath.Join(dir, "snapshots"),
		"--metrics-out", filepath.Join(dir, "metrics.jsonl"),
		"--errors", filepath.Join(dir, "errors.jsonl"),
		"--window", "1m",
		"--log-level", "error",
	})
	require.NoError(t, root.Execute())

	var metrics []byte
	metrics, err = os.ReadFile(filepath.Join(dir, "metrics.jsonl"))
	require.NoError(t, err)
	require.Contains(t, string(metrics), `"swap_count":1`)

	var out bytes.Buffer
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"inspect",
		"--pool-address", "0x00000000000000000000000000000000000000aa",
		"--snapshot-dir", filepath.Join(dir, "snapshots"),
		"--seconds-ago", "0,10",
		"--log-level", "error",
	})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "tick        -600")
	require.Contains(t, out.String(), "cursor      block 2 log 0 ts 1010")
}
