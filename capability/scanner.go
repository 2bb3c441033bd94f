package capability

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/metrics"
)

// Scan outcomes recorded in metrics.
const (
	OutcomeAbstract = "abstract"
	OutcomeConcrete = "concrete"
)

// Entry is one marker found on one unit.
type Entry struct {
	Kind  string
	Name  string
	Alias string
}

// Index is the result of a scan.
type Index struct {
	kinds    []string
	entries  map[string][]Entry
	units    []*loader.Unit
	abstract []string
}

// Entries returns the entries of one kind in enumeration order.
func (x *Index) Entries(kind string) []Entry {
	return x.entries[kind]
}

// All returns every entry, grouped by kind in registry order.
func (x *Index) All() []Entry {
	var out []Entry
	for _, k := range x.kinds {
		out = append(out, x.entries[k]...)
	}
	return out
}

// Units returns the non-abstract units in enumeration order.
func (x *Index) Units() []*loader.Unit {
	return x.units
}

// Abstract lists the names excluded because they are abstract.
func (x *Index) Abstract() []string {
	return x.abstract
}

// Scanner enumerates a loader's namespace and matches every concrete unit
// against a marker registry.
type Scanner struct {
	// Concurrency bounds parallel loads; zero means GOMAXPROCS.
	Concurrency int
	Metrics     *metrics.Collector
}

// Scan loads every enumerated name. A load error aborts the scan; when
// several names fail, the error of the first one in enumeration order is
// returned.
func (s *Scanner) Scan(ctx context.Context, l *loader.Loader, reg *Registry) (*Index, error) {
	names := l.Names()
	units := make([]*loader.Unit, len(names))
	abstract := make([]bool, len(names))
	errs := make([]error, len(names))

	limit := s.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	// failed is the lowest index that has failed so far; names after it
	// are not loaded.
	var (
		mu     sync.Mutex
		failed = len(names)
	)
	skip := func(i int) bool {
		mu.Lock()
		defer mu.Unlock()
		return i > failed
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, name := range names {
		g.Go(func() error {
			if skip(i) {
				return nil
			}
			u, err := l.Load(ctx, name)
			if err != nil {
				errs[i] = err
				mu.Lock()
				failed = min(failed, i)
				mu.Unlock()
				return nil
			}
			units[i] = u
			abstract[i] = u.Abstract(ctx)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			Logger().Error("scan aborted", zap.Error(err))
			return nil, err
		}
	}

	x := &Index{kinds: reg.Kinds(), entries: make(map[string][]Entry)}
	for i, u := range units {
		if abstract[i] {
			Logger().Debug("skipping abstract unit",
				zap.String("name", u.Name()), zap.String("reason", u.AbstractReason(ctx)))
			x.abstract = append(x.abstract, u.Name())
			s.Metrics.UnitScanned(OutcomeAbstract)
			continue
		}
		s.Metrics.UnitScanned(OutcomeConcrete)
		x.units = append(x.units, u)
		for _, d := range reg.descs {
			if !d.Detect(u) {
				continue
			}
			e := Entry{Kind: d.Kind, Name: u.Name()}
			if d.Alias != nil {
				e.Alias = d.Alias(u)
			}
			x.entries[d.Kind] = append(x.entries[d.Kind], e)
		}
	}
	Logger().Debug("scan finished",
		zap.Int("units", len(x.units)), zap.Int("abstract", len(x.abstract)))
	return x, nil
}
