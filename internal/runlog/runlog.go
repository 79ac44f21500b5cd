// Package runlog provides the structured, per-invocation logging shared by
// every vela CLI command.
//
// Each invocation of run/eval/repl is assigned a correlating run ID (via
// github.com/google/uuid) so the lex/parse/compile/run phases of a single
// pipeline pass can be tied together in the log stream even when multiple
// invocations interleave output. Logging itself goes through the standard
// library's log/slog — no third-party structured-logging library appears
// anywhere in the retrieved corpus, so slog is used directly.
package runlog

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Phase identifies which stage of the lex/parse/compile/run pipeline a log
// entry describes.
type Phase string

const (
	PhaseLex     Phase = "lex"
	PhaseParse   Phase = "parse"
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// Run correlates every log entry emitted during one CLI invocation with a
// single run ID.
type Run struct {
	id     string
	logger *slog.Logger
	start  time.Time
}

// New starts a run, logging its beginning immediately.
func New(command string) *Run {
	r := &Run{
		id:     uuid.NewString(),
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		start:  time.Now(),
	}
	r.logger.Info("run started", "run_id", r.id, "command", command)
	return r
}

// Phase logs the completion of a single pipeline phase, recording how long it
// took and the error it produced, if any.
func (r *Run) Phase(phase Phase, duration time.Duration, err error) {
	if err != nil {
		r.logger.Error("phase failed",
			"run_id", r.id,
			"phase", string(phase),
			"duration", duration,
			"error", err.Error(),
		)
		return
	}
	r.logger.Info("phase completed",
		"run_id", r.id,
		"phase", string(phase),
		"duration", duration,
	)
}

// Finish logs the end of the run.
func (r *Run) Finish(err error) {
	elapsed := time.Since(r.start)
	if err != nil {
		r.logger.Error("run finished",
			"run_id", r.id,
			"duration", elapsed,
			"error", err.Error(),
		)
		return
	}
	r.logger.Info("run finished", "run_id", r.id, "duration", elapsed)
}

// ID returns the run's correlating identifier.
func (r *Run) ID() string { return r.id }
