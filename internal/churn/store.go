package churn

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrModelNotTrained: no artifact exists yet. Callers surface this as
	// "train the model first", distinct from I/O or corruption failures.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrCorruptArtifact: an artifact exists but cannot be decoded or names
	// an unknown algorithm.
	ErrCorruptArtifact = errors.New("corrupt model artifact")
)

// Artifact is the single serialized model: the feature schema it was trained
// against plus the classifier parameters. Exactly one artifact is retained;
// Save overwrites.
type Artifact struct {
	Algorithm    string    `json:"algorithm"`
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
	TrainedAt    time.Time `json:"trained_at"`
}

// NewArtifact snapshots a trained model together with the feature columns it
// was fitted on.
func NewArtifact(m *Model, featureNames []string) (Artifact, error) {
	lr, ok := m.clf.(*logistic)
	if !ok {
		return Artifact{}, fmt.Errorf("unsupported classifier %q", m.clf.Algorithm())
	}
	w := make([]float64, len(lr.weights))
	copy(w, lr.weights)
	cols := make([]string, len(featureNames))
	copy(cols, featureNames)

	return Artifact{
		Algorithm:    lr.Algorithm(),
		FeatureNames: cols,
		Weights:      w,
		Intercept:    lr.intercept,
		TrainedAt:    time.Now().UTC(),
	}, nil
}

// ModelFromArtifact rebuilds a scoring model from a persisted artifact.
func ModelFromArtifact(a Artifact) (*Model, error) {
	if a.Algorithm != algorithmLogReg {
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrCorruptArtifact, a.Algorithm)
	}
	if len(a.Weights) != len(a.FeatureNames) {
		return nil, fmt.Errorf("%w: %d weights for %d features", ErrCorruptArtifact, len(a.Weights), len(a.FeatureNames))
	}
	clf := newLogistic(0, 0)
	clf.weights = make([]float64, len(a.Weights))
	copy(clf.weights, a.Weights)
	clf.intercept = a.Intercept
	return &Model{clf: clf}, nil
}

// Store persists the single current artifact at a well-known path.
type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

// Save writes the artifact via temp-file + rename so readers never observe a
// half-written model.
func (s *Store) Save(a Artifact) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// ModTime reports the artifact file's modification time. A missing file is
// ErrModelNotTrained, matching Load.
func (s *Store) ModTime() (time.Time, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, ErrModelNotTrained
		}
		return time.Time{}, fmt.Errorf("stat artifact: %w", err)
	}
	return fi.ModTime(), nil
}

// Load reads the current artifact. A missing file is ErrModelNotTrained; a
// present-but-undecodable file is ErrCorruptArtifact.
func (s *Store) Load() (Artifact, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, ErrModelNotTrained
		}
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	return a, nil
}

type loadedModel struct {
	Artifact Artifact
	Model    *Model
	modTime  time.Time
}

// Provider hands out the current model for inference. The cached model is
// keyed on the artifact file's mtime, so a retrain from any process (Swap
// here, or another binary writing the same path) is picked up on the next
// Current call. A new model is built in isolation and only then swapped in,
// so in-flight inference keeps using the previous one.
type Provider struct {
	store *Store

	mu  sync.Mutex
	cur atomic.Pointer[loadedModel]
}

func NewProvider(store *Store) *Provider { return &Provider{store: store} }

// Current returns the current model, reloading the artifact from the store
// whenever the file on disk changed since the cached load.
func (p *Provider) Current() (*Model, Artifact, error) {
	mt, err := p.store.ModTime()
	if err != nil {
		return nil, Artifact{}, err
	}
	if lm := p.cur.Load(); lm != nil && lm.modTime.Equal(mt) {
		return lm.Model, lm.Artifact, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if lm := p.cur.Load(); lm != nil && lm.modTime.Equal(mt) {
		return lm.Model, lm.Artifact, nil
	}

	a, err := p.store.Load()
	if err != nil {
		return nil, Artifact{}, err
	}
	m, err := ModelFromArtifact(a)
	if err != nil {
		return nil, Artifact{}, err
	}

	p.cur.Store(&loadedModel{Artifact: a, Model: m, modTime: mt})
	return m, a, nil
}

// Swap persists the new artifact and makes it current.
func (p *Provider) Swap(a Artifact) error {
	m, err := ModelFromArtifact(a)
	if err != nil {
		return err
	}
	if err := p.store.Save(a); err != nil {
		return err
	}
	mt, err := p.store.ModTime()
	if err != nil {
		return err
	}
	p.cur.Store(&loadedModel{Artifact: a, Model: m, modTime: mt})
	return nil
}
