// Package metric declares the metrics computed for a chat log entry and runs them.
package metric

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/citadel-ai/langcheckchat/internal/scoring"
)

// ErrConfiguration marks a metric that cannot be computed by any backend.
var ErrConfiguration = errors.New("metric configuration error")

// Backend is where a metric variant is computed.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// Scorers holds the backend implementations for one language. Either may be nil.
type Scorers struct {
	Local  scoring.Scorer
	Remote scoring.Scorer
}

func (s Scorers) get(b Backend) scoring.Scorer {
	if b == BackendLocal {
		return s.Local
	}
	return s.Remote
}

// ComputationError wraps a scorer failure. The metric value stays NULL.
type ComputationError struct {
	Metric  string
	Backend Backend
	Err     error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("compute %s (%s): %v", e.Metric, e.Backend, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// Store persists metric rows.
type Store interface {
	Register(ctx context.Context, logID int64, name string) (int64, error)
	UpdateValue(ctx context.Context, id int64, value *float64, explanation *string) error
}

// Descriptor is one metric bound to the inputs of a single chat log entry.
// It yields up to two rows: name for the local variant and name_<suffix> for the remote one.
type Descriptor struct {
	name          string
	scorers       map[string]Scorers
	inputs        []string
	computeLocal  bool
	computeRemote bool
	remoteSuffix  string
	store         Store

	mu      sync.Mutex
	records map[Backend]int64
}

// NewDescriptor fails with ErrConfiguration when neither backend is requested.
func NewDescriptor(name string, scorers map[string]Scorers, inputs []string, computeLocal, computeRemote bool, remoteSuffix string, store Store) (*Descriptor, error) {
	if !computeLocal && !computeRemote {
		return nil, fmt.Errorf("%w: %s has neither local nor remote computation", ErrConfiguration, name)
	}
	if computeRemote && remoteSuffix == "" {
		return nil, fmt.Errorf("%w: %s needs a remote provider suffix", ErrConfiguration, name)
	}
	return &Descriptor{
		name:          name,
		scorers:       scorers,
		inputs:        inputs,
		computeLocal:  computeLocal,
		computeRemote: computeRemote,
		remoteSuffix:  remoteSuffix,
		store:         store,
		records:       make(map[Backend]int64),
	}, nil
}

// Name is the metric's base name.
func (d *Descriptor) Name() string { return d.name }

// RecordName is the stored metric name for a backend.
func (d *Descriptor) RecordName(b Backend) string {
	if b == BackendRemote {
		return d.name + "_" + d.remoteSuffix
	}
	return d.name
}

// backends lists the variants that apply to lang, local first.
func (d *Descriptor) backends(lang string) []Backend {
	s, ok := d.scorers[lang]
	if !ok {
		return nil
	}
	var out []Backend
	if d.computeLocal && s.Local != nil {
		out = append(out, BackendLocal)
	}
	if d.computeRemote && s.Remote != nil {
		out = append(out, BackendRemote)
	}
	return out
}

// RecordNames lists the rows Register creates for lang.
func (d *Descriptor) RecordNames(lang string) []string {
	var names []string
	for _, b := range d.backends(lang) {
		names = append(names, d.RecordName(b))
	}
	return names
}

// Register inserts a NULL placeholder per applicable backend and remembers the row ids.
// An unsupported language is a no-op.
func (d *Descriptor) Register(ctx context.Context, logID int64, lang string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range d.backends(lang) {
		id, err := d.store.Register(ctx, logID, d.RecordName(b))
		if err != nil {
			return fmt.Errorf("register %s: %w", d.RecordName(b), err)
		}
		d.records[b] = id
	}
	return nil
}

// ComputeAndStore calls each registered backend's scorer and writes the result into
// its row. Remote results carry the judge's explanation. Scorer failures are
// returned as ComputationErrors after every backend was attempted; the row keeps
// its NULL value.
func (d *Descriptor) ComputeAndStore(ctx context.Context, lang string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.scorers[lang]
	if !ok {
		return nil
	}

	var errs []error
	for _, b := range []Backend{BackendLocal, BackendRemote} {
		id, registered := d.records[b]
		if !registered {
			continue
		}
		scorer := s.get(b)
		if scorer == nil {
			continue
		}

		score, err := safeScore(ctx, scorer, d.inputs)
		if err != nil {
			errs = append(errs, &ComputationError{Metric: d.RecordName(b), Backend: b, Err: err})
			continue
		}

		var explanation *string
		if b == BackendRemote {
			explanation = score.Explanation
		}
		value := score.Value
		if err := d.store.UpdateValue(ctx, id, &value, explanation); err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", d.RecordName(b), err))
		}
	}
	return errors.Join(errs...)
}

// safeScore turns a scorer panic into an error so one broken scorer only loses its own row.
func safeScore(ctx context.Context, scorer scoring.Scorer, inputs []string) (score scoring.Score, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer panicked: %v", r)
		}
	}()
	return scorer.Score(ctx, inputs)
}
