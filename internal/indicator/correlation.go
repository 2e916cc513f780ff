package indicator

import (
	"math"
	"time"

	"IndiStream/internal/domain/models"
)

// DefaultAlignTolerance bounds how far apart two observations may be and
// still count as simultaneous for correlation pairing.
const DefaultAlignTolerance = time.Minute

// DefaultCorrelationPeriod is the number of aligned pairs required.
const DefaultCorrelationPeriod = 30

// AlignedPair joins one sample from each series.
type AlignedPair struct {
	A models.PriceSample
	B models.PriceSample
}

// AlignPairs matches the two time-ordered series on nearest observation
// timestamps. Matching is monotone (pairs never cross), each sample is used
// at most once, and candidates further apart than tolerance are skipped. A
// one-step lookahead on both sides prefers the strictly closer partner, so a
// burst on one feed does not starve the other.
func AlignPairs(a, b []models.PriceSample, tolerance time.Duration) []AlignedPair {
	var out []AlignedPair
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		d := absDuration(a[i].ObservedAt.Sub(b[j].ObservedAt))
		if d > tolerance {
			if a[i].ObservedAt.Before(b[j].ObservedAt) {
				i++
			} else {
				j++
			}
			continue
		}
		if j+1 < len(b) && absDuration(a[i].ObservedAt.Sub(b[j+1].ObservedAt)) < d {
			j++
			continue
		}
		if i+1 < len(a) && absDuration(a[i+1].ObservedAt.Sub(b[j].ObservedAt)) < d {
			i++
			continue
		}
		out = append(out, AlignedPair{A: a[i], B: b[j]})
		i++
		j++
	}
	return out
}

// Correlation is the Pearson coefficient over the last period aligned pairs.
// Nil when fewer than period pairs align or either side has zero variance;
// otherwise clamped to [-1, 1] against floating point drift.
func Correlation(a, b []models.PriceSample, period int, tolerance time.Duration) *float64 {
	if period < 2 {
		return nil
	}
	pairs := AlignPairs(a, b, tolerance)
	if len(pairs) < period {
		return nil
	}
	pairs = pairs[len(pairs)-period:]

	xs := make([]float64, len(pairs))
	ys := make([]float64, len(pairs))
	for i, p := range pairs {
		xs[i] = p.A.PriceFloat()
		ys[i] = p.B.PriceFloat()
	}

	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return nil
	}

	r := cov / math.Sqrt(vx*vy)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return &r
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
