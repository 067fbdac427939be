package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"time"

	"github.com/tboby/wyoming-onnx-asr/internal/asr"
	"github.com/tboby/wyoming-onnx-asr/internal/config"
	"github.com/tboby/wyoming-onnx-asr/internal/metrics"
	"github.com/tboby/wyoming-onnx-asr/internal/protocol"
)

// DefaultLanguage is the tag used when a client never requested a
// language.
const DefaultLanguage = "en"

// MultilingualTag is the tag a multilingual fallback backend is registered
// under.
const MultilingualTag = "multi"

// ErrNoBackend is returned when no backend matches a requested language
// and no fallback applies.
var ErrNoBackend = errors.New("registry: no suitable backend")

// ProgramInfo identifies the serving program in the capability descriptor.
type ProgramInfo struct {
	Name        string
	Description string
	Version     string
	Attribution protocol.Attribution
}

// Entry is one loaded backend with its guard.
type Entry struct {
	Tag   string
	Model protocol.AsrModel

	recognizer asr.Recognizer
	// guard serializes recognition calls on this backend. Blocked
	// acquirers queue in FIFO order; acquisition respects the caller's
	// context so a bounded wait releases cleanly on timeout.
	guard   chan struct{}
	metrics *metrics.Metrics
}

// Recognize runs one recognition call under the backend's guard. The
// guard is released on every path out of the call.
func (e *Entry) Recognize(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	waitStart := time.Now()
	select {
	case e.guard <- struct{}{}:
	case <-ctx.Done():
		return "", fmt.Errorf("registry: waiting for backend %q: %w", e.Tag, ctx.Err())
	}
	defer func() { <-e.guard }()

	if e.metrics != nil {
		e.metrics.GuardWaitDuration.Observe(time.Since(waitStart).Seconds())
	}

	return e.recognizer.Recognize(ctx, samples, sampleRate, language)
}

// Registry is the process-wide backend table. It is immutable after New
// returns and safe for concurrent use.
type Registry struct {
	entries map[string]*Entry
	order   []string
	info    protocol.Info
}

// Loader constructs one backend from its configuration.
type Loader func(config.ModelConfig, *slog.Logger) (asr.Recognizer, error)

// New loads every configured backend and builds the capability
// descriptor. Any loader failure aborts startup: the registry never
// starts partially populated. The metrics handle may be nil.
func New(models []config.ModelConfig, program ProgramInfo, m *metrics.Metrics, logger *slog.Logger) (*Registry, error) {
	return NewWithLoader(models, program, m, logger, asr.Load)
}

// NewWithLoader is New with an injectable backend loader.
func NewWithLoader(models []config.ModelConfig, program ProgramInfo, m *metrics.Metrics,
	logger *slog.Logger, load Loader) (*Registry, error) {

	if len(models) == 0 {
		return nil, fmt.Errorf("registry: no backends configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{entries: make(map[string]*Entry, len(models))}

	asrModels := make([]protocol.AsrModel, 0, len(models))
	for _, mc := range models {
		recognizer, err := load(mc, logger)
		if err != nil {
			return nil, fmt.Errorf("registry: failed to load backend %q: %w", mc.Tag, err)
		}

		model := protocol.AsrModel{
			Name:        mc.Name,
			Description: mc.Description,
			Attribution: program.Attribution,
			Installed:   true,
			Languages:   mc.Languages,
			Version:     mc.Version,
		}
		if model.Description == "" {
			model.Description = mc.Name
		}
		if len(model.Languages) == 0 {
			if mc.Tag == MultilingualTag {
				model.Languages = []string{"*"}
			} else {
				model.Languages = []string{mc.Tag}
			}
		}
		if model.Version == "" {
			model.Version = "0.1"
		}

		r.entries[mc.Tag] = &Entry{
			Tag:        mc.Tag,
			Model:      model,
			recognizer: recognizer,
			guard:      make(chan struct{}, 1),
			metrics:    m,
		}
		r.order = append(r.order, mc.Tag)
		asrModels = append(asrModels, model)

		logger.Info("Backend loaded",
			slog.String("tag", mc.Tag),
			slog.String("model", mc.Name),
			slog.String("type", mc.Type),
			slog.String("device", mc.Device),
		)
	}

	r.info = protocol.Info{
		Asr: []protocol.AsrProgram{{
			Name:        program.Name,
			Description: program.Description,
			Attribution: program.Attribution,
			Installed:   true,
			Version:     program.Version,
			Models:      asrModels,
		}},
	}

	return r, nil
}

// Resolve maps a requested language tag to a backend. An exact entry for
// the language wins; otherwise the multilingual entry serves any
// language, and the default entry is the last resort.
func (r *Registry) Resolve(language string) (*Entry, error) {
	if language == "" {
		language = DefaultLanguage
	}

	if entry, ok := r.entries[language]; ok {
		return entry, nil
	}
	if entry, ok := r.entries[MultilingualTag]; ok {
		return entry, nil
	}
	if entry, ok := r.entries[DefaultLanguage]; ok {
		return entry, nil
	}

	return nil, fmt.Errorf("%w for language %q (available: %v)", ErrNoBackend, language, r.Tags())
}

// ResolveModel finds the entry whose model name matches, for clients that
// request a model by name rather than by language.
func (r *Registry) ResolveModel(name string) (*Entry, bool) {
	for _, tag := range r.order {
		if entry := r.entries[tag]; entry.Model.Name == name {
			return entry, true
		}
	}
	return nil, false
}

// Tags returns the registered language tags in configuration order.
func (r *Registry) Tags() []string {
	tags := make([]string, len(r.order))
	copy(tags, r.order)
	return tags
}

// Describe returns the static capability descriptor.
func (r *Registry) Describe() protocol.Info {
	return r.info
}
