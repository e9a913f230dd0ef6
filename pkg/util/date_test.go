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

func TestParseTimeFractionalSeconds(t *testing.T) {
	got, ok := ParseTime("2024-10-10T10:10:10.250Z")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Nanosecond() != 250_000_000 {
		t.Fatalf("unexpected nanos %d", got.Nanosecond())
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

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestMinuteBucket(t *testing.T) {
	in := time.Date(2024, 10, 10, 10, 10, 42, 999, time.FixedZone("X", 3600))
	got := MinuteBucket(in)
	want := time.Date(2024, 10, 10, 9, 10, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC bucket")
	}
}
