// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bench_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/rwq/internal/bench"
)

// chanQueue adapts a buffered channel to the harness interface.
type chanQueue struct {
	ch chan int
}

func (q *chanQueue) Enqueue(v int) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

func (q *chanQueue) Dequeue() (int, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		return 0, false
	}
}

func TestRunTimed(t *testing.T) {
	q := &chanQueue{ch: make(chan int, 64)}
	result := bench.RunTimed(q, bench.Config{
		Duration:    50 * time.Millisecond,
		ProducerCPU: -1,
		ConsumerCPU: -1,
	})

	require.Positive(t, result.Produced)
	require.Positive(t, result.Consumed)
	// The producer may squeeze in a final element after the consumer
	// finishes draining, so consumed never exceeds produced.
	assert.LessOrEqual(t, result.Consumed, result.Produced)
	assert.GreaterOrEqual(t, result.Elapsed, 50*time.Millisecond)
	assert.Positive(t, result.Throughput())
}

func TestResultThroughput(t *testing.T) {
	r := bench.Result{Consumed: 1000, Elapsed: time.Second}
	assert.InDelta(t, 1000.0, r.Throughput(), 0.001)

	zero := bench.Result{Consumed: 1000}
	assert.Zero(t, zero.Throughput())
}

func sampleSession(at string) bench.Session {
	return bench.Session{
		SessionTime: at,
		SystemInfo: bench.SystemInfo{
			NumCPU:      8,
			CPUModel:    "test-cpu",
			CPUSpeedMHz: 3200,
			GOARCH:      "amd64",
			TotalMemory: 16 << 30,
		},
		Benchmarks: []bench.Measurement{
			{
				Implementation: "rwq",
				Iteration:      1,
				Produced:       1000,
				Consumed:       1000,
				Duration:       "2s",
				Elapsed:        "2.001s",
				Throughput:     500,
				Timestamp:      1700000000,
				GoVersion:      "go1.25",
			},
			{
				Implementation: "channel",
				Iteration:      1,
				Produced:       800,
				Consumed:       800,
				Duration:       "2s",
				Elapsed:        "2.002s",
				Throughput:     400,
				Timestamp:      1700000001,
				GoVersion:      "go1.25",
			},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.db")

	store, err := bench.OpenStore(path)
	require.NoError(t, err)
	defer store.Close()

	first := sampleSession("2026-01-01T00:00:00Z")
	id, err := store.SaveSession(&first)
	require.NoError(t, err)
	assert.Positive(t, id)

	second := sampleSession("2026-01-02T00:00:00Z")
	second.Benchmarks[0].Throughput = 900
	id2, err := store.SaveSession(&second)
	require.NoError(t, err)
	assert.Greater(t, id2, id)

	sessions, err := store.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	// Newest first.
	assert.Equal(t, "2026-01-02T00:00:00Z", sessions[0].SessionTime)
	assert.Equal(t, "2026-01-01T00:00:00Z", sessions[1].SessionTime)

	require.Len(t, sessions[1].Benchmarks, 2)
	assert.Equal(t, first.Benchmarks, sessions[1].Benchmarks)
	assert.Equal(t, first.SystemInfo, sessions[1].SystemInfo)
}

func TestStoreSessionsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.db")

	store, err := bench.OpenStore(path)
	require.NoError(t, err)
	defer store.Close()

	for i := range 3 {
		sess := sampleSession(time.Date(2026, 1, i+1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339))
		_, err := store.SaveSession(&sess)
		require.NoError(t, err)
	}

	sessions, err := store.Sessions(2)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestStoreBestThroughput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.db")

	store, err := bench.OpenStore(path)
	require.NoError(t, err)
	defer store.Close()

	first := sampleSession("2026-01-01T00:00:00Z")
	_, err = store.SaveSession(&first)
	require.NoError(t, err)

	second := sampleSession("2026-01-02T00:00:00Z")
	second.Benchmarks[0].Throughput = 900
	_, err = store.SaveSession(&second)
	require.NoError(t, err)

	best, err := store.BestThroughput()
	require.NoError(t, err)
	assert.InDelta(t, 900, best["rwq"], 0.001)
	assert.InDelta(t, 400, best["channel"], 0.001)
}
