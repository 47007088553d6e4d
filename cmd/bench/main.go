// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command bench measures SPSC throughput of the rwq queues against a
// set of baseline queue implementations and records the results as
// JSON sessions and optionally in a SQLite store.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	eaq "github.com/eapache/queue"
	ring "github.com/randomizedcoder/go-lock-free-ring"
	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sugawarayuuta/sonnet"

	"code.hybscloud.com/rwq"
	"code.hybscloud.com/rwq/internal/bench"
)

// implementation names one queue under test and knows how to build a
// fresh instance per run.
type implementation struct {
	name     string
	newQueue func(capacity int) bench.Queue
}

func implementations() []implementation {
	return []implementation{
		{
			name: "rwq",
			newQueue: func(capacity int) bench.Queue {
				return &rwqAdapter{q: rwq.NewQueue[int](capacity)}
			},
		},
		{
			name: "rwq-blocking",
			newQueue: func(capacity int) bench.Queue {
				return &rwqBlockingAdapter{q: rwq.NewBlockingQueue[int](capacity)}
			},
		},
		{
			name: "channel",
			newQueue: func(capacity int) bench.Queue {
				return &channelAdapter{ch: make(chan int, capacity)}
			},
		},
		{
			name: "eapache-queue-mutex",
			newQueue: func(int) bench.Queue {
				return &mutexQueueAdapter{q: eaq.New()}
			},
		},
		{
			name: "sharded-ring",
			newQueue: func(capacity int) bench.Queue {
				r, err := ring.NewShardedRing(capacity, 1)
				if err != nil {
					panic(err)
				}
				return &shardedRingAdapter{r: r}
			},
		},
	}
}

// rwqAdapter drives the non-blocking queue. Enqueue allocates when the
// ring fills, so it never reports full.
type rwqAdapter struct {
	q *rwq.Queue[int]
}

func (a *rwqAdapter) Enqueue(v int) bool {
	a.q.Enqueue(&v)
	return true
}

func (a *rwqAdapter) Dequeue() (int, bool) {
	v, err := a.q.Dequeue()
	return v, err == nil
}

type rwqBlockingAdapter struct {
	q *rwq.BlockingQueue[int]
}

func (a *rwqBlockingAdapter) Enqueue(v int) bool {
	a.q.Enqueue(&v)
	return true
}

func (a *rwqBlockingAdapter) Dequeue() (int, bool) {
	v, err := a.q.Dequeue()
	return v, err == nil
}

// channelAdapter is the standard library baseline.
type channelAdapter struct {
	ch chan int
}

func (a *channelAdapter) Enqueue(v int) bool {
	select {
	case a.ch <- v:
		return true
	default:
		return false
	}
}

func (a *channelAdapter) Dequeue() (int, bool) {
	select {
	case v := <-a.ch:
		return v, true
	default:
		return 0, false
	}
}

// mutexQueueAdapter is an unbounded baseline: a plain growable ring
// guarded by a mutex.
type mutexQueueAdapter struct {
	mu sync.Mutex
	q  *eaq.Queue
}

func (a *mutexQueueAdapter) Enqueue(v int) bool {
	a.mu.Lock()
	a.q.Add(v)
	a.mu.Unlock()
	return true
}

func (a *mutexQueueAdapter) Dequeue() (int, bool) {
	a.mu.Lock()
	if a.q.Length() == 0 {
		a.mu.Unlock()
		return 0, false
	}
	v := a.q.Remove().(int)
	a.mu.Unlock()
	return v, true
}

// shardedRingAdapter runs the lock-free MPSC ring with a single shard
// for an apples-to-apples SPSC comparison.
type shardedRingAdapter struct {
	r *ring.ShardedRing
}

func (a *shardedRingAdapter) Enqueue(v int) bool {
	return a.r.Write(0, v)
}

func (a *shardedRingAdapter) Dequeue() (int, bool) {
	v, ok := a.r.TryRead()
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func main() {
	duration := flag.Duration("duration", 2*time.Second, "Production window per run")
	iterations := flag.Int("iter", 5, "Number of runs per implementation")
	maxSize := flag.Int("maxsize", 1024, "Queue capacity before first allocation")
	pinProducer := flag.Int("pin-producer", -1, "CPU to pin the producer thread to (-1 disables, linux only)")
	pinConsumer := flag.Int("pin-consumer", -1, "CPU to pin the consumer thread to (-1 disables, linux only)")
	jsonPath := flag.String("json", "bench-results.json", "Path of the JSON session file to append to (empty disables)")
	sqlitePath := flag.String("sqlite", "", "Path of the SQLite session store (empty disables)")
	progress := flag.Bool("progress", false, "Display a progress bar")
	flag.Parse()

	impls := implementations()
	totalRuns := len(impls) * (*iterations)

	var bar *progressbar.ProgressBar
	if *progress {
		bar = progressbar.NewOptions(totalRuns,
			progressbar.OptionSetDescription("bench"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	sysInfo := gatherSystemInfo()
	fmt.Printf("=============================\n")
	fmt.Printf("CPU: %s (%d logical, %.0f MHz)\n", sysInfo.CPUModel, sysInfo.NumCPU, sysInfo.CPUSpeedMHz)
	fmt.Printf("Arch: %s, Memory: %d MiB\n", sysInfo.GOARCH, sysInfo.TotalMemory/(1024*1024))
	fmt.Printf("=============================\n")

	var measurements []bench.Measurement
	cfg := bench.Config{
		Duration:    *duration,
		ProducerCPU: *pinProducer,
		ConsumerCPU: *pinConsumer,
	}

	for _, impl := range impls {
		for iteration := 1; iteration <= *iterations; iteration++ {
			runtime.GC()
			q := impl.newQueue(*maxSize)

			result := bench.RunTimed(q, cfg)

			if bar != nil {
				fmt.Fprintf(os.Stderr, "\r")
			}
			fmt.Printf("  %-22s iter %d/%d => produced=%d, consumed=%d, throughput=%.0f msg/s, took=%v\n",
				impl.name, iteration, *iterations,
				result.Produced, result.Consumed, result.Throughput(), result.Elapsed)

			measurements = append(measurements, bench.Measurement{
				Implementation: impl.name,
				Iteration:      iteration,
				Produced:       result.Produced,
				Consumed:       result.Consumed,
				Duration:       duration.String(),
				Elapsed:        result.Elapsed.String(),
				Throughput:     result.Throughput(),
				Timestamp:      time.Now().Unix(),
				GoVersion:      runtime.Version(),
			})

			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}
	if bar != nil {
		fmt.Fprintln(os.Stderr)
	}

	session := bench.Session{
		SessionTime: time.Now().Format(time.RFC3339),
		SystemInfo:  sysInfo,
		Benchmarks:  measurements,
	}

	if *jsonPath != "" {
		if err := appendSession(*jsonPath, session); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing JSON file:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", *jsonPath)
	}

	if *sqlitePath != "" {
		store, err := bench.OpenStore(*sqlitePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error opening SQLite store:", err)
			os.Exit(1)
		}
		defer store.Close()
		id, err := store.SaveSession(&session)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error saving session:", err)
			os.Exit(1)
		}
		fmt.Printf("Recorded session %d in %s\n", id, *sqlitePath)
	}
}

// appendSession adds one session to the JSON session file, keeping the
// previous sessions in place.
func appendSession(path string, session bench.Session) error {
	var sessions []bench.Session
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		if err := sonnet.Unmarshal(data, &sessions); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	sessions = append(sessions, session)
	data, err := sonnet.Marshal(sessions)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() bench.SystemInfo {
	info := bench.SystemInfo{
		NumCPU: runtime.NumCPU(),
		GOARCH: runtime.GOARCH,
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		info.CPUModel = infos[0].ModelName
		info.CPUSpeedMHz = infos[0].Mhz
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}
	return info
}
