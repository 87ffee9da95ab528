package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/models"
	"github.com/patchbay-dev/patchbay/pkg/pipeline"
	"github.com/patchbay-dev/patchbay/pkg/store"
)

// PipelineHandler handles evaluation and toggle endpoints.
type PipelineHandler struct {
	store  *store.GORMStore
	images *imagestore.Store
	eval   *pipeline.Evaluator
	inv    *pipeline.Invalidator
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(st *store.GORMStore, images *imagestore.Store, eval *pipeline.Evaluator, inv *pipeline.Invalidator) *PipelineHandler {
	return &PipelineHandler{store: st, images: images, eval: eval, inv: inv}
}

// previewURL returns the frontend-facing URL of an image.
func previewURL(uuid string) string {
	return "/VIPS/preview/" + uuid
}

// RunRequest is the body of POST /VIPS/run.
type RunRequest struct {
	IDProject uint   `json:"idproject"`
	InputUUID string `json:"input_uuid"`
}

// RunResponse is the success body of POST /VIPS/run.
type RunResponse struct {
	ResultUUID string `json:"result_uuid"`
	URL        string `json:"url"`
}

// Run handles POST /VIPS/run: evaluate a project's terminal block against
// an input image.
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	terminal, err := h.store.TerminalBlock(r.Context(), req.IDProject)
	if err != nil {
		WriteJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}

	lc := logger.FromContext(r.Context()).WithProject(req.IDProject).WithInput(req.InputUUID)
	ctx := logger.WithContext(r.Context(), lc)

	resultUUID, err := h.eval.ResultOf(ctx, terminal.ID, req.InputUUID)
	if err != nil {
		logger.ErrorCtx(ctx, "Pipeline evaluation failed", logger.KeyError, err)
		WriteJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}

	logger.InfoCtx(ctx, "Pipeline evaluated", logger.KeyOutput, resultUUID)
	WriteJSONOK(w, RunResponse{
		ResultUUID: resultUUID,
		URL:        previewURL(resultUUID),
	})
}

// LatestBlockImage handles GET /VIPS/block/{block_id}/image: the most
// recent cached output of a block, transcoded to PNG.
func (h *PipelineHandler) LatestBlockImage(w http.ResponseWriter, r *http.Request) {
	blockID, ok := uintParam(w, r, "block_id")
	if !ok {
		return
	}

	entry, err := h.store.LatestCacheForBlock(r.Context(), blockID)
	if err != nil {
		if errors.Is(err, models.ErrCacheEntryNotFound) {
			NotFound(w, "Block has no cached output")
			return
		}
		InternalServerError(w, "Failed to look up block output")
		return
	}

	path, err := h.images.Resolve(entry.UUID)
	if err != nil {
		NotFound(w, "Cached output file is gone")
		return
	}

	servePNG(w, r, path)
}

// BlockImage handles GET /VIPS/block/{block_id}/image/{input_uuid}:
// evaluate one block against an input and serve the result.
func (h *PipelineHandler) BlockImage(w http.ResponseWriter, r *http.Request) {
	blockID, ok := uintParam(w, r, "block_id")
	if !ok {
		return
	}
	inputUUID := chi.URLParam(r, "input_uuid")

	lc := logger.FromContext(r.Context()).WithBlock(blockID).WithInput(inputUUID)
	ctx := logger.WithContext(r.Context(), lc)

	resultUUID, err := h.eval.ResultOf(ctx, blockID, inputUUID)
	if err != nil {
		NotFound(w, "Evaluation failed: "+err.Error())
		return
	}

	path, err := h.images.Resolve(resultUUID)
	if err != nil {
		NotFound(w, "Result image not found")
		return
	}

	serveFile(w, r, path)
}

// ProjectImage handles GET /VIPS/project/{projectid}/image/{input_uuid}:
// evaluate the project's terminal block and serve the result as PNG.
func (h *PipelineHandler) ProjectImage(w http.ResponseWriter, r *http.Request) {
	projectID, ok := uintParam(w, r, "projectid")
	if !ok {
		return
	}
	inputUUID := chi.URLParam(r, "input_uuid")

	terminal, err := h.store.TerminalBlock(r.Context(), projectID)
	if err != nil {
		NotFound(w, "Project has no terminal block")
		return
	}

	lc := logger.FromContext(r.Context()).WithProject(projectID).WithInput(inputUUID)
	ctx := logger.WithContext(r.Context(), lc)

	resultUUID, err := h.eval.ResultOf(ctx, terminal.ID, inputUUID)
	if err != nil {
		NotFound(w, "Evaluation failed: "+err.Error())
		return
	}

	path, err := h.images.Resolve(resultUUID)
	if err != nil {
		NotFound(w, "Result image not found")
		return
	}

	servePNG(w, r, path)
}

// OutputsRequest is the body of POST /VIPS/project/{projectid}/outputs.
type OutputsRequest struct {
	InputUUIDs []string `json:"input_uuids"`
}

// OutputResult is one element of the batch outputs response. Either
// OutputUUID and URL are set, or Error is.
type OutputResult struct {
	InputUUID  string `json:"input_uuid"`
	OutputUUID string `json:"output_uuid,omitempty"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProjectOutputs handles POST /VIPS/project/{projectid}/outputs: evaluate
// the terminal block against a batch of inputs, preserving input order.
//
// One evaluation state is shared across the whole batch, so common
// upstream work (Load Image blocks, shared ancestors) is done once. A
// failing input yields a per-input error without aborting the batch.
func (h *PipelineHandler) ProjectOutputs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := uintParam(w, r, "projectid")
	if !ok {
		return
	}

	var req OutputsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	terminal, err := h.store.TerminalBlock(r.Context(), projectID)
	if err != nil {
		WriteJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}

	lc := logger.FromContext(r.Context()).WithProject(projectID)
	ctx := logger.WithContext(r.Context(), lc)

	ev := pipeline.NewEvaluation()
	results := make([]OutputResult, 0, len(req.InputUUIDs))
	for _, inputUUID := range req.InputUUIDs {
		outputUUID, err := h.eval.ResultOfWith(ctx, ev, terminal.ID, inputUUID)
		if err != nil {
			results = append(results, OutputResult{
				InputUUID: inputUUID,
				Error:     err.Error(),
			})
			continue
		}
		results = append(results, OutputResult{
			InputUUID:  inputUUID,
			OutputUUID: outputUUID,
			URL:        previewURL(outputUUID),
		})
	}

	WriteJSONOK(w, results)
}

// ToggleResponse is the body of the toggle_enabled endpoint.
type ToggleResponse struct {
	Success  int `json:"success"`
	NewState int `json:"newState"`
}

// ToggleEnabled handles /VIPS/block/{block_id}/toggle_enabled: flip the
// block's enabled flag, invalidating downstream caches when disabling.
func (h *PipelineHandler) ToggleEnabled(w http.ResponseWriter, r *http.Request) {
	blockID, ok := uintParam(w, r, "block_id")
	if !ok {
		return
	}

	newState, err := h.inv.ToggleEnabled(r.Context(), blockID)
	if err != nil {
		if errors.Is(err, models.ErrBlockNotFound) {
			NotFound(w, "Block not found")
			return
		}
		InternalServerError(w, "Failed to toggle block")
		return
	}

	resp := ToggleResponse{Success: 1}
	if newState {
		resp.NewState = 1
	}
	WriteJSONOK(w, resp)
}
