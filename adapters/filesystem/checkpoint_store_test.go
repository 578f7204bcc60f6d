package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"intenttune/domain/core"
	"intenttune/domain/training"
	apperrors "intenttune/internal/errors"
	"intenttune/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeader struct {
	Dim    int      `json:"dim"`
	Labels []string `json:"labels"`
}

type fakePayload struct {
	header fakeHeader
	w, b   []float64
}

func (p *fakePayload) Header() any { return p.header }

func (p *fakePayload) SetHeader(decode func(v any) error) error {
	if err := decode(&p.header); err != nil {
		return err
	}
	p.w = make([]float64, p.header.Dim*len(p.header.Labels))
	p.b = make([]float64, len(p.header.Labels))
	return nil
}

func (p *fakePayload) Tensors() []ports.NamedTensor {
	return []ports.NamedTensor{{Name: "w", Data: p.w}, {Name: "b", Data: p.b}}
}

func newPayload() *fakePayload {
	return &fakePayload{
		header: fakeHeader{Dim: 2, Labels: []string{"agree", "refuse"}},
		w:      []float64{0.5, -1.25, 3, 0.1},
		b:      []float64{0, -0.75},
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCheckpointStore()
	dir := filepath.Join(t.TempDir(), core.CheckpointIDForStep(12).String())

	meta := training.CheckpointMeta{
		ID:    core.CheckpointIDForStep(12),
		RunID: core.NewRunID(),
		Step:  12,
		Epoch: 1,
		Eval:  &training.EvalResult{Accuracy: 0.8, F1: 0.75, Loss: 0.4},
	}
	require.NoError(t, store.Save(ctx, dir, newPayload(), meta))

	for _, name := range []string{ConfigFile, StateFile, WeightsFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoDirExists(t, dir+".tmp")

	loaded := &fakePayload{}
	gotMeta, err := store.Load(ctx, dir, loaded)
	require.NoError(t, err)
	assert.Equal(t, newPayload().header, loaded.header)
	assert.InDeltaSlice(t, newPayload().w, loaded.w, 1e-6)
	assert.InDeltaSlice(t, newPayload().b, loaded.b, 1e-6)
	assert.Equal(t, 12, gotMeta.Step)
	assert.Equal(t, meta.RunID, gotMeta.RunID)
	assert.Equal(t, 0.8, gotMeta.Eval.Accuracy)
}

func TestCheckpointConfigIsReadableJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoint-1")
	require.NoError(t, NewCheckpointStore().Save(context.Background(), dir, newPayload(), training.CheckpointMeta{Step: 1}))

	raw, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, err)
	var h fakeHeader
	require.NoError(t, json.Unmarshal(raw, &h))
	assert.Equal(t, []string{"agree", "refuse"}, h.Labels)
}

func TestLoadMissingCheckpoint(t *testing.T) {
	_, err := NewCheckpointStore().Load(context.Background(), filepath.Join(t.TempDir(), "checkpoint-9"), &fakePayload{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	assert.ErrorIs(t, err, core.ErrCheckpointNotFound)
}

func TestLoadShapeMismatch(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "checkpoint-3")
	store := NewCheckpointStore()
	require.NoError(t, store.Save(ctx, dir, newPayload(), training.CheckpointMeta{}))

	// rewrite the config so the decoded shape disagrees with the weights
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(`{"dim":3,"labels":["a","b"]}`), 0o644))
	_, err := store.Load(ctx, dir, &fakePayload{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeModelError, apperrors.GetCode(err))
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	store := NewCheckpointStore()
	for _, step := range []int{30, 10, 20} {
		require.NoError(t, store.Save(ctx, filepath.Join(out, core.CheckpointIDForStep(step).String()), newPayload(), training.CheckpointMeta{Step: step}))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(out, "runs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "checkpoint-99"), nil, 0o644))

	list, err := store.List(ctx, out)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{list[0].Step, list[1].Step, list[2].Step})

	require.NoError(t, store.Delete(ctx, list[0].Path))
	list, err = store.List(ctx, out)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	missing, err := store.List(ctx, filepath.Join(out, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLedgerAndTrainingLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ledger, err := NewLedger(dir)
	require.NoError(t, err)
	run := training.RunRecord{ID: core.NewRunID(), Status: training.RunRunning, TrainFile: "train.xlsx"}
	require.NoError(t, ledger.StartRun(ctx, run))
	require.NoError(t, ledger.RecordEpoch(ctx, run.ID, training.EvalResult{Epoch: 1, Accuracy: 0.5}))
	run.Status = training.RunCompleted
	require.NoError(t, ledger.FinishRun(ctx, run))

	events := readLines[LedgerEvent](t, filepath.Join(dir, "runs.jsonl"))
	require.Len(t, events, 3)
	assert.Equal(t, []string{"start", "epoch", "finish"}, []string{events[0].Event, events[1].Event, events[2].Event})
	assert.Equal(t, training.RunCompleted, events[2].Run.Status)
	assert.Equal(t, 0.5, events[1].Eval.Accuracy)

	tl, err := NewTrainingLog(filepath.Join(dir, "logs"), run.ID.String())
	require.NoError(t, err)
	require.NoError(t, tl.Append(training.LogEntry{RunID: run.ID, Kind: "train", Step: 10, Loss: 0.9}))
	entries := readLines[training.LogEntry](t, filepath.Join(dir, "logs", run.ID.String()+".jsonl"))
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].Step)
}

func readLines[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []T
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v T
		require.NoError(t, json.Unmarshal(sc.Bytes(), &v))
		out = append(out, v)
	}
	require.NoError(t, sc.Err())
	return out
}

type replayLedger struct {
	calls []string
}

func (l *replayLedger) StartRun(_ context.Context, run training.RunRecord) error {
	l.calls = append(l.calls, "start:"+run.ID.String())
	return nil
}

func (l *replayLedger) RecordEpoch(_ context.Context, id core.RunID, r training.EvalResult) error {
	l.calls = append(l.calls, fmt.Sprintf("epoch:%s:%d", id, r.Step))
	return nil
}

func (l *replayLedger) FinishRun(_ context.Context, run training.RunRecord) error {
	l.calls = append(l.calls, "finish:"+string(run.Status))
	return nil
}

func TestReadLedgerAndReplay(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ledger, err := NewLedger(dir)
	require.NoError(t, err)

	run := training.RunRecord{ID: "run-7", Status: training.RunRunning}
	require.NoError(t, ledger.StartRun(ctx, run))
	require.NoError(t, ledger.RecordEpoch(ctx, run.ID, training.EvalResult{Step: 12}))
	run.Status = training.RunFailed
	require.NoError(t, ledger.FinishRun(ctx, run))

	events, err := ReadLedger(filepath.Join(dir, "runs.jsonl"))
	require.NoError(t, err)
	require.Len(t, events, 3)

	into := &replayLedger{}
	runs, err := Replay(ctx, events, into)
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.Equal(t, []string{"start:run-7", "epoch:run-7:12", "finish:failed"}, into.calls)

	require.NotNil(t, events[0].Run)
	assert.False(t, events[0].Run.StartedAt.IsZero(), "start time is stamped")

	_, err = ReadLedger(filepath.Join(dir, "missing.jsonl"))
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	assert.True(t, core.IsNotFoundError(err))
}

func TestReplayRejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name   string
		events []LedgerEvent
		runs   int
	}{
		{"missing run id", []LedgerEvent{{Event: "epoch", Eval: &training.EvalResult{}}}, 0},
		{"unknown type", []LedgerEvent{
			{Event: "start", RunID: "run-1", Run: &training.RunRecord{ID: "run-1"}},
			{Event: "resume", RunID: "run-1"},
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			into := &replayLedger{}
			runs, err := Replay(context.Background(), tt.events, into)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
			assert.Equal(t, tt.runs, runs)
		})
	}
}
