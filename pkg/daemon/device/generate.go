package device

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/jamesainslie/flightlog/pkg/daemon/store"
	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// GenerateOptions shapes a synthetic log.
type GenerateOptions struct {
	Flights          int
	EntriesPerFlight int
	Seed             uint64

	// IntervalMs is the time between consecutive entries. Defaults to 20.
	IntervalMs uint32
}

// Generate builds synthetic flights. Each flight opens and closes with a text
// entry and cycles through the loggable objects in between, with smoothly
// varying field values. The same options always produce the same records.
func Generate(cat *uavo.Catalogue, opts GenerateOptions) ([][][]byte, error) {
	if opts.IntervalMs == 0 {
		opts.IntervalMs = 20
	}
	types := cat.Loggable()
	if len(types) == 0 && opts.EntriesPerFlight > 2 {
		return nil, fmt.Errorf("catalogue has no loggable objects")
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9E3779B97F4A7C15))
	flights := make([][][]byte, 0, opts.Flights)

	for f := 0; f < opts.Flights; f++ {
		n := opts.EntriesPerFlight
		recs := make([][]byte, 0, n)
		phase := rng.Float64() * 2 * math.Pi
		start := uint32(rng.IntN(5000))

		for i := 0; i < n; i++ {
			e := &logbook.Entry{
				Flight:   uint16(f),
				Index:    uint16(i),
				OffsetMs: start + uint32(i)*opts.IntervalMs,
			}
			switch {
			case i == 0:
				e.Kind = logbook.KindText
				e.Payload = []byte(fmt.Sprintf("flight %d armed", f))
			case i == n-1 && n > 1:
				e.Kind = logbook.KindText
				e.Payload = []byte(fmt.Sprintf("flight %d landed after %d entries", f, n))
			default:
				t := types[(i-1)%len(types)]
				payload, err := t.Pack(sample(t, float64(i)/10+phase, rng))
				if err != nil {
					return nil, err
				}
				e.Kind = logbook.KindObject
				e.TypeID = t.ID
				e.Payload = payload
			}
			recs = append(recs, codec.Encode(e))
		}
		flights = append(flights, recs)
	}
	return flights, nil
}

func sample(t *uavo.ObjectType, x float64, rng *rand.Rand) map[string][]float64 {
	values := make(map[string][]float64, len(t.Fields))
	for fi := range t.Fields {
		f := &t.Fields[fi]
		vals := make([]float64, f.Count())
		for j := range vals {
			w := math.Sin(x + float64(fi) + float64(j)*0.5)
			switch f.Type {
			case uavo.Enum:
				vals[j] = float64(int(math.Abs(w)*float64(len(f.Options))) % max(len(f.Options), 1))
			case uavo.Uint8, uavo.Uint16, uavo.Uint32:
				vals[j] = math.Round(50 + 50*w)
			case uavo.Int8, uavo.Int16, uavo.Int32:
				vals[j] = math.Round(100 * w)
			default:
				vals[j] = math.Round((100*w+rng.NormFloat64())*100) / 100
			}
		}
		values[f.Name] = vals
	}
	return values
}

// Seed appends generated flights to s and returns how many were added.
func Seed(s *store.Store, cat *uavo.Catalogue, opts GenerateOptions) (int, error) {
	flights, err := Generate(cat, opts)
	if err != nil {
		return 0, err
	}
	for i, recs := range flights {
		if _, err := s.AppendFlight(recs); err != nil {
			return i, err
		}
	}
	return len(flights), nil
}
