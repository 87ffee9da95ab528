// Package pipeline implements the recursive DAG evaluator, the subprocess
// executor behind general blocks, and the downstream invalidation
// controller. The evaluator memoizes per request and persists results
// through the image cache index, self-healing rows whose file has
// vanished.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/metrics"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/store"
)

// Evaluator walks a project's block graph upward from a block and
// materializes that block's output image.
//
// Each recursion fetches only the visited block's row; the whole graph is
// never loaded into a persistent structure. Per-request state lives in an
// Evaluation; the only shared state is the database and the filesystem.
type Evaluator struct {
	store   *store.GORMStore
	images  *imagestore.Store
	exec    *Executor
	metrics *metrics.PipelineMetrics
}

// NewEvaluator creates an Evaluator over the given store and image tree.
func NewEvaluator(st *store.GORMStore, images *imagestore.Store, m *metrics.PipelineMetrics) *Evaluator {
	return &Evaluator{
		store:   st,
		images:  images,
		exec:    NewExecutor(images, m),
		metrics: m,
	}
}

// memoKey scopes memoization by block and initial input, so a shared
// Evaluation iterating over many inputs still gets per-input results.
type memoKey struct {
	block uint
	input string
}

// Evaluation is the request-scoped state of one or more ResultOf calls:
// a memoization map for diamond dependencies and a visitation set for
// cycle detection. It is not safe for concurrent use; each request owns
// its own.
type Evaluation struct {
	memo     map[memoKey]string
	visiting map[memoKey]bool
}

// NewEvaluation creates empty per-request evaluation state. Batch
// endpoints share one Evaluation across every input of the request.
func NewEvaluation() *Evaluation {
	return &Evaluation{
		memo:     make(map[memoKey]string),
		visiting: make(map[memoKey]bool),
	}
}

// ResultOf returns the output image UUID of a block evaluated against an
// initial input image, creating fresh per-request state.
func (e *Evaluator) ResultOf(ctx context.Context, blockID uint, inputUUID string) (string, error) {
	return e.ResultOfWith(ctx, NewEvaluation(), blockID, inputUUID)
}

// ResultOfWith evaluates a block using caller-provided evaluation state.
func (e *Evaluator) ResultOfWith(ctx context.Context, ev *Evaluation, blockID uint, inputUUID string) (string, error) {
	out, err := e.resultOf(ctx, ev, blockID, inputUUID)
	if err != nil {
		e.metrics.RecordEvaluation("error")
		return "", err
	}
	e.metrics.RecordEvaluation("ok")
	return out, nil
}

func (e *Evaluator) resultOf(ctx context.Context, ev *Evaluation, blockID uint, inputUUID string) (string, error) {
	key := memoKey{block: blockID, input: inputUUID}
	if out, ok := ev.memo[key]; ok {
		return out, nil
	}
	if ev.visiting[key] {
		return "", fmt.Errorf("block %d: %w", blockID, models.ErrCycleDetected)
	}
	ev.visiting[key] = true
	defer delete(ev.visiting, key)

	block, err := e.store.GetBlock(ctx, blockID)
	if err != nil {
		return "", err
	}

	var out string
	switch {
	case !block.IsEnabled():
		out, err = e.evalDisabled(ctx, ev, block, inputUUID)
	default:
		blockType, typeErr := e.store.GetBlockType(ctx, block.IDBlock)
		if typeErr != nil {
			return "", typeErr
		}
		switch blockType.Name {
		case models.BlockNameInput:
			out = inputUUID
		case models.BlockNameLoadImage:
			out, err = e.evalLoadImage(ctx, block)
		case models.BlockNameImagePreview:
			out, err = e.evalImagePreview(ctx, ev, block, inputUUID)
		default:
			out, err = e.evalGeneral(ctx, ev, block, blockType, inputUUID)
		}
	}
	if err != nil {
		return "", err
	}

	ev.memo[key] = out
	return out, nil
}

// evalDisabled passes through the first input by lexicographic port name.
// Disabled blocks never consult or write the cache index.
func (e *Evaluator) evalDisabled(ctx context.Context, ev *Evaluation, block *models.BlockInstance, inputUUID string) (string, error) {
	ports, err := block.OrderedPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("disabled block %d: %w", block.ID, models.ErrNoInputs)
	}
	conns, err := block.ParsedConnections()
	if err != nil {
		return "", err
	}
	return e.resultOf(ctx, ev, conns[ports[0]], inputUUID)
}

// evalLoadImage resolves the filename setting against the upload ledger.
func (e *Evaluator) evalLoadImage(ctx context.Context, block *models.BlockInstance) (string, error) {
	settings, err := block.Settings()
	if err != nil {
		return "", err
	}
	filename, _ := settings["filename"].(string)
	if filename == "" {
		return "", fmt.Errorf("load image block %d has no filename setting: %w",
			block.ID, models.ErrInputImageNotFound)
	}
	img, err := e.store.GetInputImageByFilename(ctx, filename)
	if err != nil {
		return "", err
	}
	return img.UUID, nil
}

// evalImagePreview passes through its single input. Any other arity is a
// configuration error.
func (e *Evaluator) evalImagePreview(ctx context.Context, ev *Evaluation, block *models.BlockInstance, inputUUID string) (string, error) {
	conns, err := block.ParsedConnections()
	if err != nil {
		return "", err
	}
	if len(conns) != 1 {
		return "", fmt.Errorf("image preview block %d has %d inputs, wants 1: %w",
			block.ID, len(conns), models.ErrBadArity)
	}
	ports, _ := block.OrderedPorts()
	return e.resultOf(ctx, ev, conns[ports[0]], inputUUID)
}

// evalGeneral runs the cache-consult → execute → cache-insert pipeline of
// an ordinary processing block.
func (e *Evaluator) evalGeneral(ctx context.Context, ev *Evaluation, block *models.BlockInstance, blockType *models.BlockType, inputUUID string) (string, error) {
	// Resolve inputs in lexicographic port order; this ordering also fixes
	// the cache key.
	ports, err := block.OrderedPorts()
	if err != nil {
		return "", err
	}
	conns, err := block.ParsedConnections()
	if err != nil {
		return "", err
	}
	inputUUIDs := make([]string, 0, len(ports))
	for _, port := range ports {
		upstream, err := e.resultOf(ctx, ev, conns[port], inputUUID)
		if err != nil {
			return "", err
		}
		inputUUIDs = append(inputUUIDs, upstream)
	}

	parametersJSON := block.ParametersJSON()
	inputUUIDsJSON := models.EncodeInputUUIDs(inputUUIDs)

	if out, ok := e.consultCache(ctx, block.ID, parametersJSON, inputUUIDsJSON); ok {
		return out, nil
	}

	params, err := AssembleParameters(blockType, block)
	if err != nil {
		return "", err
	}

	inputPaths := make([]string, 0, len(inputUUIDs))
	for _, u := range inputUUIDs {
		path, err := e.images.Resolve(u)
		if err != nil {
			return "", fmt.Errorf("block %d input %s: %w", block.ID, u, models.ErrMissingInputFile)
		}
		inputPaths = append(inputPaths, path)
	}

	outputUUID := uuid.NewString()
	outputPath := e.images.CachedPath(outputUUID)

	argv := BuildArgv(blockType.Command, blockType.Name, inputPaths, outputPath, params)
	if err := e.exec.Run(ctx, blockType.Name, argv, outputPath); err != nil {
		return "", err
	}

	if err := e.store.InsertCache(ctx, &models.CacheEntry{
		UUID:           outputUUID,
		IDBlock:        block.ID,
		ParametersJSON: parametersJSON,
		InputUUIDsJSON: inputUUIDsJSON,
	}); err != nil {
		return "", err
	}

	logger.DebugCtx(ctx, "Block executed and cached",
		logger.KeyBlock, block.ID,
		logger.KeyBlockName, blockType.Name,
		logger.KeyOutput, outputUUID)
	return outputUUID, nil
}

// consultCache looks up the cache key and verifies the hit's file still
// exists. A row whose file has vanished is an orphan: it is deleted on
// discovery and the lookup reports a miss, so the caller re-executes.
func (e *Evaluator) consultCache(ctx context.Context, blockID uint, parametersJSON, inputUUIDsJSON string) (string, bool) {
	entry, err := e.store.LookupCache(ctx, blockID, parametersJSON, inputUUIDsJSON)
	if err != nil {
		if !errors.Is(err, models.ErrCacheEntryNotFound) {
			logger.WarnCtx(ctx, "Cache lookup failed", logger.KeyBlock, blockID, logger.KeyError, err)
		}
		e.metrics.RecordCacheLookup("miss")
		return "", false
	}

	path, err := e.images.Resolve(entry.UUID)
	if err == nil && imagestore.Exists(path) {
		e.metrics.RecordCacheLookup("hit")
		return entry.UUID, true
	}

	// Self-heal: the file is gone, the row must not survive it.
	if err := e.store.DeleteCacheByUUID(ctx, entry.UUID); err != nil {
		logger.WarnCtx(ctx, "Failed to delete orphaned cache row",
			logger.KeyImage, entry.UUID, logger.KeyError, err)
	} else {
		logger.InfoCtx(ctx, "Deleted orphaned cache row",
			logger.KeyBlock, blockID, logger.KeyImage, entry.UUID)
	}
	e.metrics.RecordCacheLookup("self_heal")
	return "", false
}
