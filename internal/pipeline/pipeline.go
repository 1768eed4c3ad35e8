package pipeline

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// Next continues the pipeline with rec.
type Next func(ctx context.Context, rec models.SyncRecord) (models.SyncRecord, error)

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Handle(ctx context.Context, rec models.SyncRecord, next Next) (models.SyncRecord, error)
}

// HandlerFunc is the function form of [Stage.Handle].
type HandlerFunc func(ctx context.Context, rec models.SyncRecord, next Next) (models.SyncRecord, error)

type funcStage struct {
	name string
	fn   HandlerFunc
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Handle(ctx context.Context, rec models.SyncRecord, next Next) (models.SyncRecord, error) {
	return s.fn(ctx, rec, next)
}

// Func adapts fn into a named Stage.
func Func(name string, fn HandlerFunc) Stage {
	return funcStage{name: name, fn: fn}
}

// Transform builds a stage that replaces the track list with fn's result and
// always continues.
func Transform(name string, fn func(ctx context.Context, tracks []models.Record) ([]models.Record, error)) Stage {
	return Func(name, func(ctx context.Context, rec models.SyncRecord, next Next) (models.SyncRecord, error) {
		tracks, err := fn(ctx, rec.Tracks())
		if err != nil {
			return rec, err
		}
		return next(ctx, rec.WithTracks(tracks))
	})
}

// Pipeline runs stages in order.
type Pipeline struct {
	stages []Stage
	logger *log.Logger
}

// New creates a Pipeline over stages. A nil logger falls back to stderr.
func New(logger *log.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Names lists the stage names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run threads rec through every stage. When a stage does not call its
// continuation, the record it returns is the result. Stage errors are returned
// as they are.
func (p *Pipeline) Run(ctx context.Context, rec models.SyncRecord) (models.SyncRecord, error) {
	next := func(_ context.Context, r models.SyncRecord) (models.SyncRecord, error) {
		return r, nil
	}

	for i := len(p.stages) - 1; i >= 0; i-- {
		next = p.wrap(p.stages[i], next)
	}

	return next(ctx, rec)
}

func (p *Pipeline) wrap(stage Stage, next Next) Next {
	logger := shared.WithLogger(p.logger, "stage", stage.Name())
	return func(ctx context.Context, rec models.SyncRecord) (models.SyncRecord, error) {
		if err := ctx.Err(); err != nil {
			return rec, err
		}

		before := rec.Len()
		continued := false
		out, err := stage.Handle(ctx, rec, func(ctx context.Context, r models.SyncRecord) (models.SyncRecord, error) {
			continued = true
			logger.Debug("stage complete", "in", before, "out", r.Len())
			return next(ctx, r)
		})
		if err != nil {
			return out, err
		}
		if !continued {
			logger.Debug("stage stopped the pipeline", "tracks", out.Len())
		}
		return out, nil
	}
}
