package crosscat

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"gendb/internal/model"
	"gendb/internal/store"
)

// AnalyzeModels runs the engine's inference step repeatedly under the given
// iteration and wall-clock budgets, persisting a checkpoint of every
// targeted model's state and counters inside one transactional scope per
// checkpoint. Budgets are reevaluated at checkpoint boundaries only: a
// checkpoint's steps always complete once started. The data snapshot is
// loaded once at loop start and used for the whole call.
func (cc *Crosscat) AnalyzeModels(ctx context.Context, s *store.Session, generatorID int64, opts model.AnalyzeOptions) error {
	if opts.Iterations <= 0 && opts.MaxDuration <= 0 {
		return fmt.Errorf("analysis requires an iteration or time budget")
	}
	if opts.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint granularity %d is negative", opts.CheckpointEvery)
	}

	md, err := cc.metadata(ctx, s, generatorID)
	if err != nil {
		return err
	}
	data, err := cc.dataSnapshot(ctx, s, generatorID, md)
	if err != nil {
		return err
	}

	runID := ulid.Make().String()
	log := cc.log.With(
		zap.String("run", runID),
		zap.Int64("generator", generatorID))
	log.Info("analysis started",
		zap.Int("iterations", opts.Iterations),
		zap.Duration("max_duration", opts.MaxDuration),
		zap.Int("checkpoint_every", opts.CheckpointEvery))

	var deadline time.Time
	if opts.MaxDuration > 0 {
		deadline = time.Now().Add(opts.MaxDuration)
	}
	remaining := opts.Iterations
	checkpoints := 0

	for (opts.Iterations <= 0 || remaining > 0) &&
		(deadline.IsZero() || time.Now().Before(deadline)) {
		steps := 1
		switch {
		case opts.CheckpointEvery > 0:
			steps = opts.CheckpointEvery
		case opts.Iterations > 0 && deadline.IsZero():
			// A pure iteration budget with no granularity runs as one
			// uncheckpointed step.
			steps = remaining
		}
		if opts.Iterations > 0 && steps > remaining {
			steps = remaining
		}

		var updated []*modelState
		var modelNos []int
		err := s.Savepoint(ctx, func() error {
			// The target model set is resolved fresh at every checkpoint,
			// not from a snapshot taken at loop start.
			var states []*modelState
			var err error
			modelNos, states, err = cc.models(ctx, s, generatorID, opts.Models)
			if err != nil {
				return err
			}
			if len(states) == 0 {
				return fmt.Errorf("no models to analyze for generator %d: %w",
					generatorID, store.ErrNotFound)
			}
			// One engine call steps every targeted model, so they must
			// share a kernel configuration.
			kernels := states[0].Config.Kernels
			for i, ms := range states[1:] {
				if !slices.Equal(ms.Config.Kernels, kernels) {
					return fmt.Errorf("model %d kernel set differs from model %d",
						modelNos[i+1], modelNos[0])
				}
			}
			latents := make([]*LatentState, len(states))
			for i, ms := range states {
				latents[i] = ms.State
			}
			stepped, diags, err := cc.engine.Step(ctx, md, data, kernels, latents, steps)
			if err != nil {
				return fmt.Errorf("engine step: %w", err)
			}
			if len(stepped) != len(states) || len(diags) != len(states) {
				return fmt.Errorf("engine stepped %d states for %d models", len(stepped), len(states))
			}

			updated = make([]*modelState, len(states))
			for i, ms := range states {
				next := ms.clone()
				next.State = stepped[i]
				next.Iterations += steps
				next.record(diags[i])
				blob, err := next.encode()
				if err != nil {
					return err
				}
				if err := s.BumpModelIterations(ctx, generatorID, modelNos[i], steps); err != nil {
					return fmt.Errorf("update iterations for model %d: %w", modelNos[i], err)
				}
				if err := s.ExecOne(ctx,
					`UPDATE crosscat_models SET state_json = ? WHERE generator_id = ? AND modelno = ?`,
					blob, generatorID, modelNos[i]); err != nil {
					return fmt.Errorf("update state for model %d: %w", modelNos[i], err)
				}
				updated[i] = next
			}
			return nil
		})
		if err != nil {
			return err
		}

		c := cc.cache(s)
		for i, no := range modelNos {
			c.putModel(generatorID, no, updated[i])
		}
		checkpoints++
		if opts.Iterations > 0 {
			remaining -= steps
		}
		log.Debug("analysis checkpoint",
			zap.Int("checkpoint", checkpoints),
			zap.Int("steps", steps),
			zap.Ints("models", modelNos))
	}

	log.Info("analysis done", zap.Int("checkpoints", checkpoints))
	return nil
}
