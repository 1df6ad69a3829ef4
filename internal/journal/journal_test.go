package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpriddy7-alt/IWM-5-VWAP/internal/event"
)

func TestLedgerAccumulatesExits(t *testing.T) {
	l := NewLedger(8)

	entry := event.EntryEvent{PositionID: "p1", Symbol: "IWM", Direction: "calls", Contract: "C", Contracts: 84, OptionPrice: 2.50, Ts: time.Now()}
	if err := l.Publish(entry); err != nil {
		t.Fatalf("publish entry: %v", err)
	}
	if err := l.Publish(event.ExitEvent{PositionID: "p1", Symbol: "IWM", Reason: "time stop", FinalPnL: 42.5, Ts: time.Now()}); err != nil {
		t.Fatalf("publish exit: %v", err)
	}
	if err := l.Publish(event.ExitEvent{PositionID: "p2", Symbol: "IWM", Reason: "max giveback", FinalPnL: -12.5, Ts: time.Now()}); err != nil {
		t.Fatalf("publish exit: %v", err)
	}

	if got := len(l.Snapshot()); got != 3 {
		t.Fatalf("snapshot len = %d, want 3", got)
	}
	if l.Trades() != 2 {
		t.Fatalf("trades = %d, want 2", l.Trades())
	}
	pnl, _ := l.RealizedPnL().Float64()
	if pnl != 30 {
		t.Fatalf("pnl = %f, want 30", pnl)
	}

	l.Reset()
	if len(l.Snapshot()) != 0 || l.Trades() != 0 {
		t.Fatal("reset left state behind")
	}
}

func TestLedgerSnapshotIsACopy(t *testing.T) {
	l := NewLedger(0)
	l.Publish(event.BiasEvent{Symbol: "IWM", Direction: "calls", Ts: time.Now()})

	snap := l.Snapshot()
	snap[0] = event.ExitEvent{}
	if _, ok := l.Snapshot()[0].(event.BiasEvent); !ok {
		t.Fatal("mutating the snapshot changed the ledger")
	}
}

func TestJSONLRecorderWritesTaggedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	rec, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}

	if err := rec.Publish(event.BiasEvent{Symbol: "IWM", Direction: "calls", Confidence: 0.78, Ts: time.Now()}); err != nil {
		t.Fatalf("publish bias: %v", err)
	}
	if err := rec.Publish(event.ExitEvent{PositionID: "p1", Symbol: "IWM", Reason: "time stop", Ts: time.Now()}); err != nil {
		t.Fatalf("publish exit: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var types []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("bad jsonl line: %v", err)
		}
		types = append(types, line.Type)
	}
	if len(types) != 2 || types[0] != "bias" || types[1] != "exit" {
		t.Fatalf("types = %v", types)
	}

	if err := rec.Publish(event.BiasEvent{Symbol: "IWM", Direction: "calls", Ts: time.Now()}); err == nil {
		t.Fatal("publish after close succeeded")
	}
}

func TestJSONLRecorderCloseIdempotent(t *testing.T) {
	rec, err := NewJSONLRecorder(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
