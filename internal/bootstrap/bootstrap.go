package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aitorres/orion/internal/telemetry"
)

// Step is one deployment bootstrap operation.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run executes steps strictly in order. The first failing step aborts the
// sequence; later steps never run. In particular a failed migration must
// prevent the server from starting.
func Run(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info().Str("step", step.Name).Msg("bootstrap step starting")
		start := time.Now()
		err := step.Run(ctx)
		telemetry.ObserveBootstrapStep(step.Name, err, time.Since(start))
		if err != nil {
			return fmt.Errorf("bootstrap step %s: %w", step.Name, err)
		}
		log.Info().Str("step", step.Name).Dur("duration", time.Since(start)).Msg("bootstrap step finished")
	}
	return nil
}
