// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"slices"
	"time"
)

// quantileEstimator is a streaming P-Square estimator (Jain & Chlamtac, 1985)
// for a single quantile, constant memory and O(1) per observation.
//
// Thread Safety: NOT thread-safe.
type quantileEstimator struct {
	p       float64
	heights [5]float64
	pos     [5]int
	want    [5]float64
	step    [5]float64
	count   int
}

func newQuantileEstimator(p float64) quantileEstimator {
	p = min(max(p, 0), 1)
	return quantileEstimator{
		p:    p,
		step: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (e *quantileEstimator) observe(x float64) {
	e.count++
	if e.count <= 5 {
		// warm-up: the first five samples become the initial markers
		e.heights[e.count-1] = x
		if e.count == 5 {
			slices.Sort(e.heights[:])
			e.pos = [5]int{0, 1, 2, 3, 4}
			e.want = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
		}
		return
	}

	var k int
	switch {
	case x < e.heights[0]:
		e.heights[0] = x
	case x >= e.heights[4]:
		e.heights[4] = x
		k = 3
	default:
		for k = 0; k < 3 && x >= e.heights[k+1]; k++ {
		}
	}

	for i := k + 1; i < 5; i++ {
		e.pos[i]++
	}
	for i := range e.want {
		e.want[i] += e.step[i]
	}

	for i := 1; i < 4; i++ {
		d := e.want[i] - float64(e.pos[i])
		if (d >= 1 && e.pos[i+1]-e.pos[i] > 1) || (d <= -1 && e.pos[i-1]-e.pos[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			if h := e.parabolic(i, sign); e.heights[i-1] < h && h < e.heights[i+1] {
				e.heights[i] = h
			} else {
				e.heights[i] = e.linear(i, sign)
			}
			e.pos[i] += sign
		}
	}
}

func (e *quantileEstimator) parabolic(i, sign int) float64 {
	d := float64(sign)
	n, prev, next := float64(e.pos[i]), float64(e.pos[i-1]), float64(e.pos[i+1])
	return e.heights[i] + d/(next-prev)*
		((n-prev+d)*(e.heights[i+1]-e.heights[i])/(next-n)+
			(next-n-d)*(e.heights[i]-e.heights[i-1])/(n-prev))
}

func (e *quantileEstimator) linear(i, sign int) float64 {
	j := i + sign
	return e.heights[i] + float64(sign)*(e.heights[j]-e.heights[i])/float64(e.pos[j]-e.pos[i])
}

func (e *quantileEstimator) value() float64 {
	switch {
	case e.count == 0:
		return 0
	case e.count < 5:
		sorted := slices.Clone(e.heights[:e.count])
		slices.Sort(sorted)
		return sorted[int(float64(e.count-1)*e.p)]
	default:
		return e.heights[2]
	}
}

// latencyTracker summarizes callback durations.
type latencyTracker struct {
	p50, p90, p99 quantileEstimator
	sum, max      time.Duration
	count         int
}

func newLatencyTracker() latencyTracker {
	return latencyTracker{
		p50: newQuantileEstimator(0.50),
		p90: newQuantileEstimator(0.90),
		p99: newQuantileEstimator(0.99),
	}
}

func (t *latencyTracker) observe(d time.Duration) {
	t.count++
	t.sum += d
	t.max = max(t.max, d)
	x := float64(d)
	t.p50.observe(x)
	t.p90.observe(x)
	t.p99.observe(x)
}

// LatencySnapshot summarizes how long callbacks took to run.
type LatencySnapshot struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

func (t *latencyTracker) snapshot() LatencySnapshot {
	s := LatencySnapshot{
		P50:   time.Duration(t.p50.value()),
		P90:   time.Duration(t.p90.value()),
		P99:   time.Duration(t.p99.value()),
		Max:   t.max,
		Count: t.count,
	}
	if t.count != 0 {
		s.Mean = t.sum / time.Duration(t.count)
	}
	return s
}
