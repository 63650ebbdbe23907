package flv

// frameRateRingSize bounds the sampler's rolling window at 30 entries,
// per §4.6.4.
const frameRateRingSize = 30

// frameRateMinSamples is the number of ring entries required before the
// sampler reports an average.
const frameRateMinSamples = 5

// frameRateSampler implements the weighted PTS/wall-clock frame-rate
// estimator from §4.6.4. It is adapted from bugVanisher-streamer's
// statistics/fps.go, which keeps a similar "accumulate, then report on
// threshold" shape but samples on a fixed wall-clock interval rather
// than this spec's PTS-delta-weighted ring buffer.
type frameRateSampler struct {
	haveLast     bool
	lastPTS      int32
	lastFrame    int64 // wall-clock millis

	ring  [frameRateRingSize]float64
	count int // total samples ever pushed, saturates ring usage
	next  int // next ring slot to write
}

// Sample records one NAL-carrying video tag's pts and wall-clock time
// (both in milliseconds) and reports whether enough samples now exist to
// produce a fresh estimate, plus that estimate.
func (s *frameRateSampler) Sample(pts int32, nowMillis int64) (fps float64, ok bool) {
	defer func() {
		s.haveLast = true
		s.lastPTS = pts
		s.lastFrame = nowMillis
	}()

	if !s.haveLast {
		return 0, false
	}
	ptsDelta := int64(pts) - int64(s.lastPTS)
	timeDelta := nowMillis - s.lastFrame
	if ptsDelta <= 0 || timeDelta <= 0 {
		return 0, false
	}

	// NOTE: 90000 treats the FLV millisecond timestamp as if it were a
	// 90 kHz clock. FLV timestamps are milliseconds, so the dimensionally
	// correct divisor would be 1000. This is preserved exactly as
	// specified: an inherited quirk from the source this was derived
	// from, not a bug to fix here.
	rPTS := 90000.0 / float64(ptsDelta)
	rTime := 1000.0 / float64(timeDelta)
	sample := 0.7*rPTS + 0.3*rTime

	s.ring[s.next%frameRateRingSize] = sample
	s.next++
	s.count++

	if s.count < frameRateMinSamples {
		return 0, false
	}

	n := s.count
	if n > frameRateRingSize {
		n = frameRateRingSize
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += s.ring[i]
	}
	return sum / float64(n), true
}
