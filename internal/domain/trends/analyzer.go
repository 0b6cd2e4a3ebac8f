package trends

import (
	"math"
	"time"
)

const day = 24 * time.Hour

type window struct {
	sum   float64
	count int
}

func (w window) mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// split sorts samples into the current window (now-N, now] and the previous
// window (now-2N, now-N]. Anything else is dropped. A day is 24 hours.
func split(samples []MetricSample, windowDays int, now time.Time) (cur, prev window) {
	if windowDays <= 0 {
		windowDays = 1
	}
	span := time.Duration(windowDays) * day
	curStart := now.Add(-span)
	prevStart := now.Add(-2 * span)

	for _, s := range samples {
		t := s.RecordedAt
		switch {
		case t.After(curStart) && !t.After(now):
			cur.sum += s.Value
			cur.count++
		case t.After(prevStart) && !t.After(curStart):
			prev.sum += s.Value
			prev.count++
		}
	}
	return cur, prev
}

// compare classifies the move from previous to current. percentChange is 0
// when previous is not positive, whatever current is.
func compare(current, previous, deadbandPercent float64) (abs, pct float64, dir Direction) {
	if deadbandPercent < 0 {
		deadbandPercent = 0
	}
	abs = current - previous
	if previous > 0 {
		pct = abs / previous * 100
	}
	switch {
	// A zero change is stable even with a zero deadband.
	case abs == 0 || math.Abs(pct) < deadbandPercent:
		dir = DirectionStable
	case abs > 0:
		dir = DirectionUp
	default:
		dir = DirectionDown
	}
	return abs, pct, dir
}

// AnalyzeTrend compares the mean sample value of the last windowDays days
// with the mean of the windowDays days before them. Empty windows average 0.
// The result carries no metric name or polarity; AnalyzeMetric fills those.
func AnalyzeTrend(samples []MetricSample, windowDays int, deadbandPercent float64, now time.Time) TrendResult {
	cur, prev := split(samples, windowDays, now)
	return result(cur.mean(), prev.mean(), cur.count, prev.count, deadbandPercent)
}

// AnalyzeCounts is AnalyzeTrend for event metrics: each window's value is
// the number of samples it holds rather than their mean.
func AnalyzeCounts(samples []MetricSample, windowDays int, deadbandPercent float64, now time.Time) TrendResult {
	cur, prev := split(samples, windowDays, now)
	return result(float64(cur.count), float64(prev.count), cur.count, prev.count, deadbandPercent)
}

// AnalyzeMetric analyzes samples of a registered metric using its
// aggregation and deadband, and stamps its name and polarity.
func AnalyzeMetric(def MetricDefinition, samples []MetricSample, windowDays int, now time.Time) TrendResult {
	var tr TrendResult
	if def.Aggregation == AggregateCount {
		tr = AnalyzeCounts(samples, windowDays, def.DeadbandPercent, now)
	} else {
		tr = AnalyzeTrend(samples, windowDays, def.DeadbandPercent, now)
	}
	tr.MetricName = def.Name
	tr.Polarity = def.Polarity
	return tr
}

func result(current, previous float64, curCount, prevCount int, deadbandPercent float64) TrendResult {
	abs, pct, dir := compare(current, previous, deadbandPercent)
	return TrendResult{
		CurrentWindowAverage:  current,
		PreviousWindowAverage: previous,
		AbsoluteChange:        abs,
		PercentChange:         pct,
		Direction:             dir,
		CurrentCount:          curCount,
		PreviousCount:         prevCount,
	}
}
