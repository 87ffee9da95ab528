package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/metrics"
	"github.com/patchbay-dev/patchbay/pkg/models"
)

// Executor runs a block's external command as a subprocess.
//
// The Executor is stateless and takes no locks. Two concurrent executions
// of the same cache key are tolerated: each writes a distinct output UUID
// and the later cache insert wins, leaving the earlier file an orphan for
// self-heal to collect.
type Executor struct {
	images  *imagestore.Store
	metrics *metrics.PipelineMetrics
}

// NewExecutor creates an Executor writing into the given image store.
func NewExecutor(images *imagestore.Store, m *metrics.PipelineMetrics) *Executor {
	return &Executor{images: images, metrics: m}
}

// BuildArgv assembles the child argv vector:
//
//	[command, block_name, input_paths…, output_path, positional…, templated…]
//
// Empty elements are dropped. Arguments are always passed as a vector,
// never through a shell: settings and filenames are user-controlled.
func BuildArgv(command, blockName string, inputPaths []string, outputPath string, params *Parameters) []string {
	argv := make([]string, 0, 3+len(inputPaths)+len(params.Positional)+len(params.Templated))
	appendNonEmpty := func(tokens ...string) {
		for _, t := range tokens {
			if t != "" {
				argv = append(argv, t)
			}
		}
	}
	appendNonEmpty(command, blockName)
	appendNonEmpty(inputPaths...)
	appendNonEmpty(outputPath)
	appendNonEmpty(params.Positional...)
	appendNonEmpty(params.Templated...)
	return argv
}

// Run spawns the command and waits for it. Stderr is merged into stdout on
// a single pipe drained to completion before reaping. Success requires
// exit code 0 and the output file present on disk; any other outcome
// deletes a partial output file and fails.
func (e *Executor) Run(ctx context.Context, blockName string, argv []string, outputPath string) error {
	if len(argv) == 0 || argv[0] == "" {
		return fmt.Errorf("block %q has no command: %w", blockName, models.ErrExecFailed)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	output := strings.TrimSpace(string(out))

	if err != nil {
		_ = e.images.RemoveIfPresent(outputPath)
		e.metrics.RecordExecution(blockName, "error", elapsed)
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		logger.ErrorCtx(ctx, "Block command failed",
			logger.KeyBlockName, blockName,
			logger.KeyArgs, argv,
			logger.KeyExitCode, exitCode,
			"output", output)
		return fmt.Errorf("block %q: %v: %w", blockName, err, models.ErrExecFailed)
	}

	if !imagestore.Exists(outputPath) {
		e.metrics.RecordExecution(blockName, "error", elapsed)
		logger.ErrorCtx(ctx, "Block command exited 0 but produced no output",
			logger.KeyBlockName, blockName,
			logger.KeyPath, outputPath,
			"output", output)
		return fmt.Errorf("block %q produced no output file: %w", blockName, models.ErrExecFailed)
	}

	e.metrics.RecordExecution(blockName, "ok", elapsed)
	logger.DebugCtx(ctx, "Block command succeeded",
		logger.KeyBlockName, blockName,
		logger.KeyPath, outputPath,
		logger.KeyDurationMs, logger.Duration(start))
	return nil
}
