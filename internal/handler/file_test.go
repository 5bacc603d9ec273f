package handler

import "testing"

func TestParseRangeHeader(t *testing.T) {
	cases := []struct {
		header string
		ok     bool
		start  int64
		end    int64
	}{
		{"", true, 0, 0},
		{"bytes=0-499", true, 0, 499},
		{"bytes=500-", true, 500, -1},
		{"bytes=0-0", true, 0, 0},
		{"bytes=5-2", false, 0, 0},
		{"bytes=-500", false, 0, 0},
		{"bytes=0-499,600-699", false, 0, 0},
		{"items=0-499", false, 0, 0},
		{"bytes=abc-def", false, 0, 0},
	}
	for _, tc := range cases {
		rng, ok := parseRangeHeader(tc.header)
		if ok != tc.ok {
			t.Fatalf("header %q: expected ok=%v, got %v", tc.header, tc.ok, ok)
		}
		if !ok || tc.header == "" {
			if tc.header == "" && rng != nil {
				t.Fatal("empty header should mean no range")
			}
			continue
		}
		if rng.Start != tc.start || rng.End != tc.end {
			t.Fatalf("header %q: expected [%d,%d], got [%d,%d]", tc.header, tc.start, tc.end, rng.Start, rng.End)
		}
	}
}
