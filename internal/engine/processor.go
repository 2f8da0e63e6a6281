package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// Command is a unit of work executed against the engine on the processor
// goroutine.
type Command func(*Engine) error

type job struct {
	cmd  Command
	done chan error
}

// Processor serializes mutating commands onto a single goroutine, so
// concurrent callers queue instead of racing for the engine lock. With all
// mutations funneled through here, a failed reentrancy check inside the
// engine always means a genuine nested call, not caller contention.
type Processor struct {
	engine *Engine
	jobs   chan job
	log    zerolog.Logger
}

func NewProcessor(e *Engine, buffer int, log zerolog.Logger) *Processor {
	return &Processor{
		engine: e,
		jobs:   make(chan job, buffer),
		log:    log,
	}
}

// Run consumes commands until ctx is cancelled. Start exactly once.
func (p *Processor) Run(ctx context.Context) {
	p.log.Info().Msg("processor started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("processor stopped")
			return
		case j := <-p.jobs:
			j.done <- j.cmd(p.engine)
		}
	}
}

// Submit queues cmd and waits for its result. Returns ctx.Err() if the
// context is cancelled before the command completes.
func (p *Processor) Submit(ctx context.Context, cmd Command) error {
	j := job{cmd: cmd, done: make(chan error, 1)}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
