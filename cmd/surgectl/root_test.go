package main

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	fallback := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	got, err := parseDate("", fallback)
	if err != nil || !got.Equal(fallback) {
		t.Fatalf("expected fallback, got %s %v", got, err)
	}
	got, err = parseDate("2026-10-12", fallback)
	if err != nil || !got.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parse %s %v", got, err)
	}
	if _, err := parseDate("10/12/2026", fallback); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestDateRangeRejectsInvertedRange(t *testing.T) {
	if err := labelCmd.Flags().Set("start", "2026-10-12"); err != nil {
		t.Fatal(err)
	}
	if err := labelCmd.Flags().Set("end", "2026-10-01"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := dateRange(labelCmd, time.Now()); err == nil {
		t.Fatalf("expected inverted range error")
	}
}

func TestEveryCommandRegistered(t *testing.T) {
	want := map[string]bool{"label": false, "features": false, "train": false, "predict": false, "weekly": false, "score": false, "migrate": false, "export-key": false, "signals": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("command %s not registered", name)
		}
	}
}
