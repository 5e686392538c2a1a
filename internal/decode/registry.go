package decode

// Registry owns the fixed set of decoders and dispatches a Sequence to
// each whose ProtocolBit is set in the active mask, stopping at the
// first success (spec.md §4.D). It replaces the source's static
// Protocol::protocols array + virtual dispatch with a plain slice of the
// Decoder interface, as spec.md §9 asks.
type Registry struct {
	decoders     []Decoder
	activeMask   uint32
	attempts     map[string]uint64
	successes    map[string]uint64
	bestFailure  *SensorReading
	bestFailProt string
}

// NewRegistry builds a registry over decoders, all active by default.
func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{
		decoders:  decoders,
		attempts:  make(map[string]uint64),
		successes: make(map[string]uint64),
	}
	for _, d := range decoders {
		r.activeMask |= d.ProtocolBit()
	}
	return r
}

// SetActive replaces the active protocol mask.
func (r *Registry) SetActive(mask uint32) { r.activeMask = mask }

// Limits folds every active decoder's AdjustLimits over the defaults,
// restoring the per-protocol widening spec.md §4.C calls the "union of
// per-protocol limits" (SPEC_FULL.md Supplemented Features).
func (r *Registry) Limits() Limits {
	lim := DefaultLimits()
	for _, d := range r.decoders {
		if d.ProtocolBit()&r.activeMask == 0 {
			continue
		}
		d.AdjustLimits(&lim)
	}
	return lim
}

// Decode offers seq to every active decoder in registration order and
// returns the first success. On total failure it returns the reading and
// decoder carrying the highest decoded-bit count seen this call, so
// the caller can print a useful undecoded-sequence diagnostic.
func (r *Registry) Decode(seq *Sequence) (*SensorReading, Decoder, bool) {
	var bestReading *SensorReading
	var bestDecoder Decoder

	for _, d := range r.decoders {
		if d.ProtocolBit()&r.activeMask == 0 {
			continue
		}
		r.attempts[d.Name()]++
		reading, ok := d.Decode(seq)
		if ok {
			r.successes[d.Name()]++
			return reading, d, true
		}
		if reading != nil && (bestReading == nil || reading.DecodedBits > bestReading.DecodedBits) {
			bestReading = reading
			bestDecoder = d
		}
	}

	r.bestFailure = bestReading
	if bestDecoder != nil {
		r.bestFailProt = bestDecoder.Name()
	}
	return bestReading, bestDecoder, false
}

// Attempts returns the attempt count recorded for a decoder by name.
func (r *Registry) Attempts(name string) uint64 { return r.attempts[name] }

// Successes returns the success count recorded for a decoder by name.
func (r *Registry) Successes(name string) uint64 { return r.successes[name] }

// Decoders exposes the underlying slice for iteration by diagnostics.
func (r *Registry) Decoders() []Decoder { return r.decoders }
