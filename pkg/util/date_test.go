package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeUnixMillis(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(want.UnixMilli(), 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(want) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestBarClosed(t *testing.T) {
	open := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if BarClosed(open, time.Minute, open.Add(59*time.Second)) {
		t.Fatalf("bar should still be open")
	}
	if !BarClosed(open, time.Minute, open.Add(time.Minute)) {
		t.Fatalf("bar should be closed at open+tf")
	}
}

func TestAlignTo(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 7, 31, 0, time.UTC)
	got := AlignTo(ts, 5*time.Minute)
	if !got.Equal(time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)) {
		t.Fatalf("unexpected alignment %v", got)
	}
}

func TestSplitNonEmpty(t *testing.T) {
	got := SplitNonEmpty(" a, ,b,", ",")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split %v", got)
	}
}
