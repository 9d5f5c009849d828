package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestForEachTickerContinuesAfterFailure(t *testing.T) {
	var seen []string
	errBoom := errors.New("boom")
	err := forEachTicker(context.Background(), []string{"aapl", " msft ", "goog"}, 0, zerolog.Nop(), func(_ context.Context, ticker string) error {
		seen = append(seen, ticker)
		if ticker == "MSFT" {
			return errBoom
		}
		return nil
	})

	if len(seen) != 3 || seen[0] != "AAPL" || seen[1] != "MSFT" {
		t.Errorf("seen = %v", seen)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestForEachTickerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := forEachTicker(ctx, []string{"A", "B", "C"}, time.Hour, zerolog.Nop(), func(context.Context, string) error {
		calls++
		cancel()
		return nil
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"AAPL":  "AAPL_dcf.html",
		"BRK.B": "BRK_B_dcf.html",
		"^GSPC": "_GSPC_dcf.html",
	}
	for in, want := range tests {
		if got := outputName(in, "_dcf.html"); got != want {
			t.Errorf("outputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteOutputCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := writeOutput(dir, "AAPL", ".svg", "<svg/>")
	if err != nil {
		t.Fatalf("writeOutput: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "<svg/>" {
		t.Errorf("read back %q, %v", data, err)
	}
}
