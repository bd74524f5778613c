package openmeteo

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/couchcryptid/polygon-weather-dashboard/internal/domain"
)

// sampleRange is the half-open interval [lo, hi) synthetic samples are drawn from.
type sampleRange struct {
	lo, hi float64
}

var syntheticRanges = map[string]sampleRange{
	domain.FieldTemperature:   {5, 35},
	domain.FieldHumidity:      {30, 90},
	domain.FieldWindSpeed:     {2, 22},
	domain.FieldPrecipitation: {0, 5},
}

// Synthesizer generates plausible hourly weather when the archive is unavailable.
// It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSynthesizer creates a Synthesizer seeded from the runtime's random source.
func NewSynthesizer() *Synthesizer {
	return NewSeededSynthesizer(rand.Uint64())
}

// NewSeededSynthesizer creates a deterministic Synthesizer.
func NewSeededSynthesizer(seed uint64) *Synthesizer {
	return &Synthesizer{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Hours returns the number of hourly samples generated for a span: the
// span rounded up to whole hours, never less than one.
func Hours(start, end time.Time) int {
	n := int(math.Ceil(end.Sub(start).Hours()))
	if n < 1 {
		return 1
	}
	return n
}

// Generate returns synthetic data for every dashboard field, hourly from start.
func (s *Synthesizer) Generate(start, end time.Time) domain.HourlyData {
	n := Hours(start, end)
	data := domain.HourlyData{
		Time:      make([]time.Time, n),
		Values:    make(map[string]domain.Series, len(domain.HourlyFields)),
		Synthetic: true,
	}
	for i := range data.Time {
		data.Time[i] = start.Add(time.Duration(i) * time.Hour)
	}
	for _, field := range domain.HourlyFields {
		data.Values[field] = s.Series(field, n)
	}
	return data
}

// Series returns n synthetic samples for field. Unknown fields yield zeros.
func (s *Synthesizer) Series(field string, n int) domain.Series {
	r, ok := syntheticRanges[field]
	out := make(domain.Series, n)
	if !ok {
		return out
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range out {
		out[i] = r.lo + s.rnd.Float64()*(r.hi-r.lo)
	}
	return out
}
