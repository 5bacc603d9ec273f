package jobs

import (
	"MediaVault/config"
	"errors"
	"strings"
	"testing"
)

func TestTruncateError(t *testing.T) {
	config.InitConfig()
	limit := config.AppConfig.JobErrorMaxLen

	short := truncateError(errors.New("boom"))
	if short != "boom" {
		t.Fatalf("short message altered: %q", short)
	}

	long := truncateError(errors.New(strings.Repeat("x", limit*2)))
	if len(long) != limit {
		t.Fatalf("expected %d chars, got %d", limit, len(long))
	}
}

func TestSegmentMimeType(t *testing.T) {
	cases := map[string]string{
		"index.m3u8":   "application/vnd.apple.mpegurl",
		"seg_00001.ts": "video/mp2t",
		"other.bin":    "application/octet-stream",
	}
	for name, want := range cases {
		if got := segmentMimeType(name); got != want {
			t.Fatalf("segmentMimeType(%q) = %q, want %q", name, got, want)
		}
	}
}
