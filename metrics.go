package anythread

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks runtime statistics for an owner loop. All methods are safe
// for concurrent use; collection is enabled via WithMetrics and accessed via
// Loop.Metrics().
//
// Example:
//
//	loop, _ := NewLoop(WithMetrics(true))
//	go loop.Run(ctx)
//	// ... work ...
//	sample := loop.Metrics().Dispatch.Sample()
//	fmt.Printf("TPS: %.2f, P99 dispatch wait: %v\n", loop.Metrics().TPS(), sample.P99)
type Metrics struct {
	// Dispatch tracks how long events wait between post and dispatch.
	Dispatch LatencyMetrics

	// Execute tracks handler execution duration per dispatched event.
	Execute LatencyMetrics

	// Queue tracks event queue depth.
	Queue QueueMetrics

	tps *TPSCounter
}

// newMetrics creates a Metrics with the default throughput window.
func newMetrics() *Metrics {
	return &Metrics{
		tps: NewTPSCounter(10*time.Second, 100*time.Millisecond),
	}
}

// TPS returns the dispatch throughput over the rolling window.
func (m *Metrics) TPS() float64 {
	return m.tps.TPS()
}

// sampleSize is the number of latency samples retained, as a rolling buffer,
// for percentile computation.
const sampleSize = 1000

// LatencyMetrics tracks a latency distribution over a rolling sample window.
type LatencyMetrics struct {
	mu          sync.Mutex
	sampleIdx   int
	sampleCount int
	sum         time.Duration
	samples     [sampleSize]time.Duration
}

// LatencySample is a point-in-time summary of a latency distribution.
type LatencySample struct {
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// Record records a latency sample. Called by the loop on each dispatch.
func (l *LatencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Rolling buffer: subtract the sample being replaced once full.
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}

	l.samples[l.sampleIdx] = duration
	l.sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from the retained samples. Sorting costs
// O(n log n) over at most sampleSize entries; for monitoring, call it on the
// order of once per second rather than per event.
func (l *LatencyMetrics) Sample() LatencySample {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return LatencySample{}
	}

	sorted := make([]time.Duration, count)
	copy(sorted, l.samples[:count])
	slices.Sort(sorted)

	return LatencySample{
		P50:   sorted[percentileIndex(count, 50)],
		P90:   sorted[percentileIndex(count, 90)],
		P95:   sorted[percentileIndex(count, 95)],
		P99:   sorted[percentileIndex(count, 99)],
		Max:   sorted[count-1],
		Mean:  l.sum / time.Duration(count),
		Count: count,
	}
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// QueueMetrics tracks event queue depth statistics.
type QueueMetrics struct {
	mu      sync.RWMutex
	current int
	max     int
	avg     float64
	emaInit bool
}

// Update records the queue depth observed after a post.
func (q *QueueMetrics) Update(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.current = depth
	if depth > q.max {
		q.max = depth
	}
	// Exponential moving average with alpha=0.1, initialized to the first
	// observation rather than zero.
	if !q.emaInit {
		q.avg = float64(depth)
		q.emaInit = true
	} else {
		q.avg = 0.9*q.avg + 0.1*float64(depth)
	}
}

// Current returns the most recently observed queue depth.
func (q *QueueMetrics) Current() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.current
}

// Max returns the maximum observed queue depth.
func (q *QueueMetrics) Max() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.max
}

// Avg returns the exponential moving average of the queue depth.
func (q *QueueMetrics) Avg() float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.avg
}

// TPSCounter tracks events per second over a rolling window of fixed-size
// buckets. At startup the reported rate stays below the true rate until the
// window fills; after warmup it reflects the average over the whole window.
type TPSCounter struct {
	lastRotation atomic.Value // stores time.Time
	buckets      []int64
	bucketSize   time.Duration
	windowSize   time.Duration
	mu           sync.Mutex
}

// NewTPSCounter creates a TPS counter with the given rolling window and
// bucket granularity (for example 10s window, 100ms buckets).
func NewTPSCounter(windowSize, bucketSize time.Duration) *TPSCounter {
	bucketCount := int(windowSize / bucketSize)
	if bucketCount < 1 {
		bucketCount = 1
	}
	counter := &TPSCounter{
		buckets:    make([]int64, bucketCount),
		bucketSize: bucketSize,
		windowSize: windowSize,
	}
	counter.lastRotation.Store(time.Now())
	return counter
}

// Increment records one event.
func (t *TPSCounter) Increment() {
	t.rotate()
	t.mu.Lock()
	t.buckets[len(t.buckets)-1]++
	t.mu.Unlock()
}

// rotate advances the bucket window to cover elapsed time.
func (t *TPSCounter) rotate() {
	now := time.Now()
	lastRotation := t.lastRotation.Load().(time.Time)
	elapsed := now.Sub(lastRotation)
	bucketsToAdvance := int(elapsed / t.bucketSize)

	if bucketsToAdvance >= len(t.buckets) {
		// Full window reset
		t.mu.Lock()
		for i := range t.buckets {
			t.buckets[i] = 0
		}
		t.mu.Unlock()
		t.lastRotation.Store(now)
		return
	}

	if bucketsToAdvance > 0 {
		t.mu.Lock()
		// Shift buckets left, filling with zeros
		for i := 0; i < len(t.buckets)-bucketsToAdvance; i++ {
			t.buckets[i] = t.buckets[i+bucketsToAdvance]
		}
		for i := len(t.buckets) - bucketsToAdvance; i < len(t.buckets); i++ {
			t.buckets[i] = 0
		}
		t.mu.Unlock()
		t.lastRotation.Store(lastRotation.Add(time.Duration(bucketsToAdvance) * t.bucketSize))
	}
}

// TPS returns the current events per second.
func (t *TPSCounter) TPS() float64 {
	t.rotate()

	t.mu.Lock()
	defer t.mu.Unlock()

	var sum int64
	for _, count := range t.buckets {
		sum += count
	}

	if sum == 0 {
		return 0
	}

	return float64(sum) / t.windowSize.Seconds()
}
