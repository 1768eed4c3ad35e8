package pipeline

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/samber/lo"
)

// Deps are the collaborators a stage factory may need.
type Deps struct {
	Searcher         services.TrackSearcher
	LiveVersionLimit int
	Logger           *log.Logger
}

// Factory builds a stage from deps.
type Factory func(deps Deps) (Stage, error)

// Registry maps stage names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in stages.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(StageDedupe, func(Deps) (Stage, error) { return Deduplicate(), nil })
	r.Register(StageDedupeByName, func(Deps) (Stage, error) { return DeduplicateByName(), nil })
	r.Register(StageNormalize, func(Deps) (Stage, error) { return Normalize(), nil })
	r.Register(StageValidate, func(Deps) (Stage, error) { return Validate(), nil })
	r.Register(StageLiveVersions, func(d Deps) (Stage, error) {
		if d.Searcher == nil {
			return nil, fmt.Errorf("%w: %s needs a track searcher", shared.ErrInvalidConfig, StageLiveVersions)
		}
		return LiveVersions(d.Searcher, d.LiveVersionLimit, d.Logger), nil
	})
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists the registered stage names in sorted order.
func (r *Registry) Names() []string {
	names := lo.Keys(r.factories)
	slices.Sort(names)
	return names
}

// Build instantiates the named stages in order.
func (r *Registry) Build(names []string, deps Deps) ([]Stage, error) {
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		f, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", shared.ErrUnknownStage, name, r.Names())
		}
		stage, err := f(deps)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// NewFromNames builds a Pipeline from stage names.
func (r *Registry) NewFromNames(names []string, deps Deps) (*Pipeline, error) {
	stages, err := r.Build(names, deps)
	if err != nil {
		return nil, err
	}
	return New(deps.Logger, stages...), nil
}
