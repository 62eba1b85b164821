package model

import "testing"

func TestReplayCursorAfter(t *testing.T) {
	var none *ReplayCursor
	if !none.After(0, 0) {
		t.Fatalf("nil cursor must accept every event")
	}

	c := &ReplayCursor{BlockNumber: 100, LogIndex: 5}
	cases := []struct {
		block, log uint64
		want       bool
	}{
		{99, 50, false},
		{100, 4, false},
		{100, 5, false},
		{100, 6, true},
		{101, 0, true},
	}
	for _, tc := range cases {
		if got := c.After(tc.block, tc.log); got != tc.want {
			t.Fatalf("After(%d, %d) = %v, want %v", tc.block, tc.log, got, tc.want)
		}
	}
}
