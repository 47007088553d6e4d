// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bench provides a timed single-producer single-consumer run
// harness for comparing queue implementations, plus a SQLite-backed
// store for historical sessions.
package bench

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Queue is a queue under test, reduced to the operations the harness
// drives. Implementations adapt their own API to this pair.
type Queue interface {
	// Enqueue offers one element. Reports false when the queue is
	// momentarily full; the harness retries.
	Enqueue(v int) bool

	// Dequeue takes one element. Reports false when the queue is
	// momentarily empty.
	Dequeue() (int, bool)
}

// Config controls a timed run.
type Config struct {
	// Duration of the production window. The consumer keeps draining
	// after the window closes.
	Duration time.Duration

	// ProducerCPU and ConsumerCPU pin the respective goroutine's OS
	// thread to a CPU when >= 0. Pinning is best effort and only
	// supported on linux.
	ProducerCPU int
	ConsumerCPU int
}

// Result is the outcome of one timed run.
type Result struct {
	Produced int64
	Consumed int64
	Elapsed  time.Duration
}

// Throughput returns consumed messages per second.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Consumed) / r.Elapsed.Seconds()
}

// RunTimed drives one producer goroutine and one consumer goroutine
// over q for cfg.Duration, then lets the consumer drain the remainder.
// Returns the produced and consumed counts and the actual elapsed time.
func RunTimed(q Queue, cfg Config) Result {
	var produced, consumed atomix.Int64
	var stop atomix.Bool

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if cfg.ProducerCPU >= 0 {
			_ = PinThread(cfg.ProducerCPU)
		}
		w := spin.Wait{}
		for i := 0; ; i++ {
			if stop.Load() {
				return
			}
			for !q.Enqueue(i) {
				if stop.Load() {
					return
				}
				w.Once()
			}
			w.Reset()
			produced.Add(1)
		}
	}()

	go func() {
		defer wg.Done()
		if cfg.ConsumerCPU >= 0 {
			_ = PinThread(cfg.ConsumerCPU)
		}
		w := spin.Wait{}
		for {
			if _, ok := q.Dequeue(); ok {
				consumed.Add(1)
				w.Reset()
				continue
			}
			if stop.Load() {
				// The producer has seen or will see the flag; drain
				// until the first empty read. An enqueue already in
				// flight when the flag was set may land after this
				// drain and is then counted as produced only.
				for {
					if _, ok := q.Dequeue(); !ok {
						return
					}
					consumed.Add(1)
				}
			}
			w.Once()
		}
	}()

	timer := time.NewTimer(cfg.Duration)
	<-timer.C
	stop.Store(true)
	wg.Wait()

	return Result{
		Produced: produced.Load(),
		Consumed: consumed.Load(),
		Elapsed:  time.Since(start),
	}
}

// SystemInfo describes the host a session ran on.
type SystemInfo struct {
	NumCPU      int     `json:"num_cpu"`
	CPUModel    string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH      string  `json:"go_arch"`
	TotalMemory uint64  `json:"total_memory_bytes,omitempty"`
}

// Measurement is one timed run of one implementation.
type Measurement struct {
	Implementation string  `json:"implementation"`
	Iteration      int     `json:"iteration"`
	Produced       int64   `json:"produced"`
	Consumed       int64   `json:"consumed"`
	Duration       string  `json:"test_duration"`
	Elapsed        string  `json:"actual_elapsed"`
	Throughput     float64 `json:"throughput_msgs_sec"`
	Timestamp      int64   `json:"timestamp"`
	GoVersion      string  `json:"go_version"`
}

// Session is a complete benchmark session.
type Session struct {
	SessionTime string        `json:"session_time"`
	SystemInfo  SystemInfo    `json:"system_info"`
	Benchmarks  []Measurement `json:"benchmarks"`
}
