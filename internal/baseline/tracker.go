// Package baseline keeps bounded per-instrument histories of recent spread,
// depth, midpoint and PMWV observations and derives the medians and spreads
// of those histories that the cascade detectors compare against.
//
// Medians are taken at index len/2 of the sorted window. This is a
// deterministic approximation of the true median (no interpolation for even
// windows) and is kept as is so that results stay reproducible.
package baseline

// Config sets the window capacities.
type Config struct {
	Capacity     int // spread and depth windows
	MidCapacity  int // midpoint window used for the mid sigma
	PMWVCapacity int // PMWV history used for the extreme-move percentile
}

func DefaultConfig() Config {
	return Config{
		Capacity:     30,
		MidCapacity:  60,
		PMWVCapacity: 256,
	}
}

// Baseline is the rolling history of one instrument.
type Baseline struct {
	Spreads *Window
	Depths  *Window
	Mids    *Window
	PMWV    *Window
}

// Checkpoint is the serialisable form of a Baseline, oldest value first.
type Checkpoint struct {
	Spreads []float64 `json:"spreads"`
	Depths  []float64 `json:"depths"`
	Mids    []float64 `json:"mids"`
	PMWV    []float64 `json:"pmwv"`
}

// Tracker owns one Baseline per instrument, created on first observation and
// kept for the process lifetime. Memory is bounded by the window capacities.
// It is not safe for concurrent use.
type Tracker struct {
	cfg       Config
	baselines map[string]*Baseline
}

func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:       cfg,
		baselines: make(map[string]*Baseline),
	}
}

func (t *Tracker) getOrCreate(id string) *Baseline {
	if b, ok := t.baselines[id]; ok {
		return b
	}
	b := &Baseline{
		Spreads: NewWindow(t.cfg.Capacity),
		Depths:  NewWindow(t.cfg.Capacity),
		Mids:    NewWindow(t.cfg.MidCapacity),
		PMWV:    NewWindow(t.cfg.PMWVCapacity),
	}
	t.baselines[id] = b
	return b
}

// Observe appends whichever of spread and depth are present and returns the
// current medians. A median is nil while its window is empty.
func (t *Tracker) Observe(id string, spread, depth *float64) (medSpread, medDepth *float64) {
	b := t.getOrCreate(id)
	if spread != nil {
		b.Spreads.Push(*spread)
	}
	if depth != nil {
		b.Depths.Push(*depth)
	}
	return medianOf(b.Spreads), medianOf(b.Depths)
}

// Medians returns the current medians without recording anything.
func (t *Tracker) Medians(id string) (medSpread, medDepth *float64) {
	b, ok := t.baselines[id]
	if !ok {
		return nil, nil
	}
	return medianOf(b.Spreads), medianOf(b.Depths)
}

// ObserveMid appends a midpoint when present.
func (t *Tracker) ObserveMid(id string, mid *float64) {
	if mid == nil {
		return
	}
	t.getOrCreate(id).Mids.Push(*mid)
}

// MidSigma is the sample standard deviation of the midpoint window, 0 with
// fewer than two observations.
func (t *Tracker) MidSigma(id string) float64 {
	b, ok := t.baselines[id]
	if !ok {
		return 0
	}
	sigma, _ := b.Mids.StdDev()
	return sigma
}

// ObservePMWV appends a price-movement-per-volume value.
func (t *Tracker) ObservePMWV(id string, v float64) {
	t.getOrCreate(id).PMWV.Push(v)
}

// PMWVHistory returns a copy of the PMWV window, oldest first.
func (t *Tracker) PMWVHistory(id string) []float64 {
	b, ok := t.baselines[id]
	if !ok {
		return nil
	}
	return b.PMWV.Values()
}

// Len is the number of tracked instruments.
func (t *Tracker) Len() int {
	return len(t.baselines)
}

// Export returns a checkpoint for every tracked instrument.
func (t *Tracker) Export() map[string]Checkpoint {
	out := make(map[string]Checkpoint, len(t.baselines))
	for id, b := range t.baselines {
		out[id] = Checkpoint{
			Spreads: b.Spreads.Values(),
			Depths:  b.Depths.Values(),
			Mids:    b.Mids.Values(),
			PMWV:    b.PMWV.Values(),
		}
	}
	return out
}

// Restore replaces the history of each instrument in cps. Values beyond the
// configured capacity are evicted oldest first, as if observed in order.
func (t *Tracker) Restore(cps map[string]Checkpoint) {
	for id, cp := range cps {
		delete(t.baselines, id)
		b := t.getOrCreate(id)
		pushAll(b.Spreads, cp.Spreads)
		pushAll(b.Depths, cp.Depths)
		pushAll(b.Mids, cp.Mids)
		pushAll(b.PMWV, cp.PMWV)
	}
}

func pushAll(w *Window, values []float64) {
	for _, v := range values {
		w.Push(v)
	}
}

func medianOf(w *Window) *float64 {
	m, ok := w.Median()
	if !ok {
		return nil
	}
	return &m
}
