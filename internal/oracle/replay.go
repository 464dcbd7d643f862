package oracle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"gopkg.in/yaml.v3"
)

// ErrReplayExhausted is returned once every recorded call has been served.
var ErrReplayExhausted = errors.New("replay has no more recorded calls")

// ReplayCall is one recorded network response, keyed by blob name.
type ReplayCall map[string][][]float64

// ReplayFile is the on-disk layout of recorded responses.
type ReplayFile struct {
	Calls []ReplayCall `yaml:"calls"`
}

// Replay serves recorded responses in order, one per Score call. It lets the
// full evaluation run against cached network outputs without a runtime.
type Replay struct {
	calls []Output
	next  int
	mu    sync.Mutex
}

// LoadReplay reads a YAML replay file.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: replay path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	var f ReplayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse replay file %s: %w", path, err)
	}
	return NewReplay(f)
}

// NewReplay converts recorded calls into outputs.
func NewReplay(f ReplayFile) (*Replay, error) {
	r := &Replay{calls: make([]Output, 0, len(f.Calls))}
	for i, call := range f.Calls {
		var out Output
		for name, rows := range call {
			m, err := blob.FromRows(rows, 0)
			if err != nil {
				return nil, fmt.Errorf("call %d, output %s: %w", i, name, err)
			}
			if err := out.Set(name, m); err != nil {
				return nil, fmt.Errorf("call %d: %w", i, err)
			}
		}
		r.calls = append(r.calls, out)
	}
	return r, nil
}

// Remaining returns how many recorded calls are left.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls) - r.next
}

// Score returns the next recorded response.
func (r *Replay) Score(ctx context.Context, _ Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.calls) {
		return Output{}, ErrReplayExhausted
	}
	out := r.calls[r.next]
	r.next++
	return out, nil
}
