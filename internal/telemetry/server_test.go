package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"intenttune/domain/resources"
	"intenttune/domain/training"
	"intenttune/internal"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()
	m.ObserveSnapshot(resources.Snapshot{
		Memory: resources.Memory{TotalBytes: 100, UsedBytes: 40, AvailableBytes: 60, Percent: 40},
		GPUs:   []resources.GPUStat{{ID: 0, Name: "Tesla T4", MemoryUsedMB: 512, MemoryTotalMB: 15360}},
	})
	m.ObserveStep(0.7, 0.004, 1.5)
	m.StepTaken()
	m.ObserveEval(training.EvalResult{Accuracy: 0.9, F1: 0.88, Loss: 0.3})

	assert.Equal(t, 40.0, testutil.ToFloat64(m.ramPercent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trainSteps))

	srv := httptest.NewServer(NewServer(m, internal.NewLogger(internal.LogLevelError)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `intenttune_gpu_memory_used_megabytes{gpu="0",name="Tesla T4"} 512`)
	assert.Contains(t, text, `intenttune_eval_metric{metric="accuracy",split="eval"} 0.9`)
	assert.Contains(t, text, "intenttune_train_loss 0.7")
}

func TestHealthz(t *testing.T) {
	s := NewServer(NewMetrics(), internal.NewLogger(internal.LogLevelError))
	s.SetPhase("training")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"phase":"training"`))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStep(1, 1, 1)
		m.SampleFailed()
		m.ObserveEval(training.EvalResult{})
		m.ObserveSnapshot(resources.Snapshot{})
		m.StepTaken()
	})
}
