package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"intenttune/domain/core"
	"intenttune/domain/training"
	"intenttune/internal/errors"
	"intenttune/ports"
)

// LedgerEvent is one line of the run ledger
type LedgerEvent struct {
	Event string               `json:"event"`
	RunID core.RunID           `json:"run_id"`
	Run   *training.RunRecord  `json:"run,omitempty"`
	Eval  *training.EvalResult `json:"eval,omitempty"`
	At    core.Timestamp       `json:"at"`
}

// Ledger records runs to runs.jsonl when no database is configured
type Ledger struct {
	w *JSONLinesWriter
}

// NewLedger writes to dir/runs.jsonl
func NewLedger(dir string) (*Ledger, error) {
	w, err := NewJSONLinesWriter(filepath.Join(dir, "runs.jsonl"))
	if err != nil {
		return nil, err
	}
	return &Ledger{w: w}, nil
}

// StartRun implements ports.RunLedger. A run without a start time is
// stamped with the current time.
func (l *Ledger) StartRun(ctx context.Context, run training.RunRecord) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = core.Now()
	}
	return l.w.Write(LedgerEvent{Event: "start", RunID: run.ID, Run: &run, At: core.Now()})
}

// RecordEpoch implements ports.RunLedger
func (l *Ledger) RecordEpoch(ctx context.Context, runID core.RunID, result training.EvalResult) error {
	return l.w.Write(LedgerEvent{Event: "epoch", RunID: runID, Eval: &result, At: core.Now()})
}

// FinishRun implements ports.RunLedger
func (l *Ledger) FinishRun(ctx context.Context, run training.RunRecord) error {
	return l.w.Write(LedgerEvent{Event: "finish", RunID: run.ID, Run: &run, At: core.Now()})
}

// ReadLedger loads every event of a runs.jsonl file in order
func ReadLedger(path string) ([]LedgerEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: ledger %s", core.ErrNotFound, path))
		}
		return nil, errors.StorageError("open ledger", err)
	}
	defer f.Close()

	var events []LedgerEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev LedgerEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, errors.StorageError(fmt.Sprintf("%s line %d", path, line), err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.StorageError("read ledger", err)
	}
	return events, nil
}

// Replay feeds ledger events into another ledger and returns the number of
// runs started
func Replay(ctx context.Context, events []LedgerEvent, into ports.RunLedger) (int, error) {
	runs := 0
	for i, ev := range events {
		if _, err := core.ParseRunID(ev.RunID.String()); err != nil {
			return runs, errors.Newf(errors.CodeInvalidInput, "ledger event %d (%s): %v", i+1, ev.Event, err)
		}
		var err error
		switch ev.Event {
		case "start":
			if ev.Run == nil {
				continue
			}
			err = into.StartRun(ctx, *ev.Run)
			runs++
		case "epoch":
			if ev.Eval == nil {
				continue
			}
			err = into.RecordEpoch(ctx, ev.RunID, *ev.Eval)
		case "finish":
			if ev.Run == nil {
				continue
			}
			err = into.FinishRun(ctx, *ev.Run)
		default:
			return runs, errors.Newf(errors.CodeInvalidInput, "ledger event %d: unknown type %q", i+1, ev.Event)
		}
		if err != nil {
			return runs, errors.Wrapf(err, "replay %s of run %s", ev.Event, ev.RunID)
		}
	}
	return runs, nil
}
