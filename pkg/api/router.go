package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patchbay-dev/patchbay/internal/logger"
	"github.com/patchbay-dev/patchbay/pkg/api/handlers"
	"github.com/patchbay-dev/patchbay/pkg/imagestore"
	"github.com/patchbay-dev/patchbay/pkg/metrics"
	"github.com/patchbay-dev/patchbay/pkg/pipeline"
	"github.com/patchbay-dev/patchbay/pkg/store"
	"github.com/patchbay-dev/patchbay/pkg/thumbnail"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - A far-past Expires header on every response so browsers never cache
//     pipeline output that a toggle may invalidate
func NewRouter(st *store.GORMStore, images *imagestore.Store, thumbs *thumbnail.Service, maxUploadBytes int64) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(noBrowserCache)

	pipelineMetrics := metrics.NewPipelineMetrics()
	eval := pipeline.NewEvaluator(st, images, pipelineMetrics)
	inv := pipeline.NewInvalidator(st, images, pipelineMetrics)

	imageHandler := handlers.NewImageHandler(st, images, thumbs, maxUploadBytes)
	pipelineHandler := handlers.NewPipelineHandler(st, images, eval, inv)
	healthHandler := handlers.NewHealthHandler(st)

	r.Route("/VIPS", func(r chi.Router) {
		r.Post("/upload", imageHandler.Upload)
		r.Get("/inputs", imageHandler.ListInputs)
		r.Get("/preview/{uuid}", imageHandler.Preview)

		r.Post("/run", pipelineHandler.Run)
		r.Get("/block/{block_id}/image", pipelineHandler.LatestBlockImage)
		r.Get("/block/{block_id}/image/{input_uuid}", pipelineHandler.BlockImage)
		r.Get("/project/{projectid}/image/{input_uuid}", pipelineHandler.ProjectImage)
		r.Post("/project/{projectid}/outputs", pipelineHandler.ProjectOutputs)
		// The frontend toggles with GET or POST depending on context.
		r.HandleFunc("/block/{block_id}/toggle_enabled", pipelineHandler.ToggleEnabled)
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	return r
}

// noBrowserCache disables client-side caching on every response. Cached
// images are addressed by mutable routes (latest block output, previews),
// so a stale browser cache would mask invalidation.
func noBrowserCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Expires", "Thu, 01 Jan 1970 00:00:00 GMT")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs requests using the internal logger and seeds the
// request-scoped LogContext every downstream component logs through.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}

		lc := logger.NewLogContext(requestID, clientIP)
		ctx := logger.WithContext(r.Context(), lc)
		r = r.WithContext(ctx)

		logger.DebugCtx(ctx, "API request started",
			"method", r.Method,
			"path", r.URL.Path,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.InfoCtx(ctx, "API request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
