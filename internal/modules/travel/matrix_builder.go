// README: Builds the merged mode-cost matrix: cache first, batched provider fetches per mode, then gap filling.
package travel

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"calroute/internal/obs"
)

const unresolved = -1

type BuilderConfig struct {
	MaxBatchOrigins      int
	MaxBatchDestinations int
	// BatchDelay is the minimum spacing between provider calls.
	BatchDelay   time.Duration
	BatchTimeout time.Duration
	// Workers bounds the per-mode fan-out.
	Workers int

	WalkingMaxMinutes float64
	CyclingMaxMinutes float64

	AirportMinutes  int
	FallbackMinutes int
}

func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MaxBatchOrigins:      25,
		MaxBatchDestinations: 25,
		BatchDelay:           200 * time.Millisecond,
		BatchTimeout:         10 * time.Second,
		Workers:              3,
		WalkingMaxMinutes:    15 * 1.5,
		CyclingMaxMinutes:    30 * 1.5,
		AirportMinutes:       45,
		FallbackMinutes:      60,
	}
}

type MatrixBuilder struct {
	provider Provider
	cache    *MatrixCache
	cfg      BuilderConfig
	limiter  *rate.Limiter
}

func NewMatrixBuilder(provider Provider, cache *MatrixCache, cfg BuilderConfig) *MatrixBuilder {
	def := DefaultBuilderConfig()
	if cfg.MaxBatchOrigins <= 0 {
		cfg.MaxBatchOrigins = def.MaxBatchOrigins
	}
	if cfg.MaxBatchDestinations <= 0 {
		cfg.MaxBatchDestinations = def.MaxBatchDestinations
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WalkingMaxMinutes <= 0 {
		cfg.WalkingMaxMinutes = def.WalkingMaxMinutes
	}
	if cfg.CyclingMaxMinutes <= 0 {
		cfg.CyclingMaxMinutes = def.CyclingMaxMinutes
	}
	if cfg.AirportMinutes <= 0 {
		cfg.AirportMinutes = def.AirportMinutes
	}
	if cfg.FallbackMinutes <= 0 {
		cfg.FallbackMinutes = def.FallbackMinutes
	}
	if cache == nil {
		cache = NewMatrixCache(NewMemoryCacheStore(), DefaultCacheTTL)
	}
	limit := rate.Inf
	if cfg.BatchDelay > 0 {
		limit = rate.Every(cfg.BatchDelay)
	}
	return &MatrixBuilder{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Build returns the merged matrix over places for the enabled modes.
// Provider failures are logged and the affected legs are gap-filled, so the
// only errors are invalid input.
func (b *MatrixBuilder) Build(ctx context.Context, places []Place, modes []Mode) (_ *Matrix, err error) {
	defer obs.Time(ctx, "travel.matrix.Build")(&err)

	if len(places) == 0 {
		return nil, ErrNoPlaces
	}
	modes = NormalizeModes(modes)
	if len(modes) == 0 {
		return nil, ErrNoModes
	}

	// Car and rideshare share provider data, so fetch once per provider mode.
	fetchIndex := make(map[ProviderMode]int)
	var fetchModes []Mode
	for _, m := range modes {
		if _, ok := fetchIndex[m.Provider()]; ok {
			continue
		}
		fetchIndex[m.Provider()] = len(fetchModes)
		fetchModes = append(fetchModes, m)
	}

	// Each worker writes only its own slot.
	perMode := make([][][]int, len(fetchModes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(fetchModes), b.cfg.Workers))
	for i, m := range fetchModes {
		g.Go(func() error {
			perMode[i] = b.modeDurations(gctx, places, m)
			return nil
		})
	}
	_ = g.Wait()

	n := len(places)
	matrix := &Matrix{
		Places:    places,
		Minutes:   newIntMatrix(n, unresolved),
		Modes:     make([][]Mode, n),
		Estimated: make([][]bool, n),
		ByMode:    make(map[ProviderMode][][]int, len(fetchModes)),
	}
	for pm, i := range fetchIndex {
		matrix.ByMode[pm] = perMode[i]
	}
	for i := 0; i < n; i++ {
		matrix.Modes[i] = make([]Mode, n)
		matrix.Estimated[i] = make([]bool, n)
		for j := 0; j < n; j++ {
			if i == j {
				matrix.Minutes[i][j] = 0
				continue
			}
			minutes, mode := b.bestMode(perMode, fetchIndex, modes, i, j)
			if minutes == unresolved {
				continue
			}
			matrix.Minutes[i][j] = minutes
			matrix.Modes[i][j] = mode
		}
	}

	b.fillGaps(matrix, modes)
	return matrix, nil
}

// bestMode picks the fastest suitable mode for a pair. When every mode with
// data is unsuitable the fastest of those is used rather than an estimate.
func (b *MatrixBuilder) bestMode(perMode [][][]int, fetchIndex map[ProviderMode]int, modes []Mode, i, j int) (int, Mode) {
	best, bestMode := unresolved, Mode("")
	raw, rawMode := unresolved, Mode("")
	for _, m := range modes {
		d := perMode[fetchIndex[m.Provider()]][i][j]
		if d == unresolved {
			continue
		}
		if raw == unresolved || d < raw {
			raw, rawMode = d, m
		}
		if !b.suitable(m, d) {
			continue
		}
		if best == unresolved || d < best {
			best, bestMode = d, m
		}
	}
	if best == unresolved {
		return raw, rawMode
	}
	return best, bestMode
}

func (b *MatrixBuilder) suitable(m Mode, minutes int) bool {
	switch m {
	case ModeWalking:
		return float64(minutes) <= b.cfg.WalkingMaxMinutes
	case ModeBike:
		return float64(minutes) <= b.cfg.CyclingMaxMinutes
	default:
		return true
	}
}

// modeDurations resolves one mode's N x N durations from the cache and the
// provider. Cells the provider could not answer stay unresolved.
func (b *MatrixBuilder) modeDurations(ctx context.Context, places []Place, mode Mode) [][]int {
	n := len(places)
	d := newIntMatrix(n, unresolved)

	index := make(map[string][]int, n)
	for i, p := range places {
		index[p.Key] = append(index[p.Key], i)
	}

	var origins, destinations []Place
	seenOrigin := make(map[string]bool)
	seenDest := make(map[string]bool)
	for i, from := range places {
		for j, to := range places {
			if i == j || from.Key == to.Key {
				d[i][j] = 0
				continue
			}
			if minutes, ok := b.cache.Lookup(ctx, from.Key, to.Key, mode); ok {
				d[i][j] = minutes
				continue
			}
			if !seenOrigin[from.Key] {
				seenOrigin[from.Key] = true
				origins = append(origins, from)
			}
			if !seenDest[to.Key] {
				seenDest[to.Key] = true
				destinations = append(destinations, to)
			}
		}
	}
	if len(origins) == 0 {
		return d
	}
	if b.provider == nil {
		log.Printf("[MATRIX] no provider configured; %d origins unresolved for %s", len(origins), mode)
		return d
	}

	for _, oChunk := range chunkPlaces(origins, b.cfg.MaxBatchOrigins) {
		for _, dChunk := range chunkPlaces(destinations, b.cfg.MaxBatchDestinations) {
			if err := b.limiter.Wait(ctx); err != nil {
				log.Printf("[MATRIX] stopping %s fetches: %v", mode, err)
				return d
			}
			rows, err := b.fetchBatch(ctx, oChunk, dChunk, mode)
			if err != nil {
				log.Printf("[MATRIX] provider batch failed mode=%s origins=%d destinations=%d: %v",
					mode, len(oChunk), len(dChunk), err)
				continue
			}
			b.absorb(ctx, d, index, rows, oChunk, dChunk, mode)
		}
	}
	return d
}

func (b *MatrixBuilder) fetchBatch(ctx context.Context, origins, destinations []Place, mode Mode) ([][]Element, error) {
	if b.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.BatchTimeout)
		defer cancel()
	}
	return b.provider.BatchDurations(ctx, origins, destinations, mode)
}

// absorb validates each element, caches it and writes it into every matrix
// cell sharing the origin and destination keys.
func (b *MatrixBuilder) absorb(ctx context.Context, d [][]int, index map[string][]int, rows [][]Element, origins, destinations []Place, mode Mode) {
	for oi, o := range origins {
		if oi >= len(rows) {
			break
		}
		for di, dest := range destinations {
			if di >= len(rows[oi]) {
				break
			}
			if o.Key == dest.Key {
				continue
			}
			el := rows[oi][di]
			if !el.OK() {
				continue
			}
			minutes := int(el.Duration / time.Minute)
			b.cache.Store(ctx, o.Key, dest.Key, mode, minutes)
			for _, i := range index[o.Key] {
				for _, j := range index[dest.Key] {
					if d[i][j] == unresolved {
						d[i][j] = minutes
					}
				}
			}
		}
	}
}

func chunkPlaces(places []Place, size int) [][]Place {
	var out [][]Place
	for start := 0; start < len(places); start += size {
		end := min(start+size, len(places))
		out = append(out, places[start:end])
	}
	return out
}

func newIntMatrix(n, fill int) [][]int {
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
		for j := range m[i] {
			m[i][j] = fill
		}
	}
	return m
}
