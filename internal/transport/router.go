package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/greenroomhq/greenroom/internal/config"
	"github.com/greenroomhq/greenroom/internal/deadline"
	"github.com/greenroomhq/greenroom/internal/episode"
	"github.com/greenroomhq/greenroom/internal/inventory"
	"github.com/greenroomhq/greenroom/internal/observability"
	"github.com/greenroomhq/greenroom/internal/reassign"
	"github.com/greenroomhq/greenroom/internal/workflow"
	"github.com/greenroomhq/greenroom/model"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Authenticate func(http.Handler) http.Handler
	Ready        http.HandlerFunc

	Episodes  *episode.Service
	Workflow  *workflow.Engine
	Deadlines *deadline.Scheduler
	Inventory *inventory.Allocator
	Reassign  *reassign.Auditor
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	// Public routes, bypass authentication.
	r.Get("/healthz", observability.HandleHealth())
	if deps.Ready != nil {
		r.Get("/readyz", deps.Ready)
	}
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	// Authenticated routes.
	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext(deps.Config.Identity.ClaimPaths))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Route("/programs", func(r chi.Router) {
			r.Post("/", handleProgramCreate(deps.Episodes))
			r.Get("/", handleProgramList(deps.Episodes))
			r.Get("/{programId}/episodes", handleEpisodeList(deps.Episodes))
		})

		r.Route("/episodes", func(r chi.Router) {
			r.Post("/", handleEpisodeCreate(deps.Episodes))
			r.Get("/{episodeId}", handleEpisodeGet(deps.Episodes))
			r.Put("/{episodeId}/air-date", handleEpisodeReschedule(deps.Episodes))
			r.Delete("/{episodeId}", handleEpisodeDelete(deps.Episodes))

			r.Post("/{episodeId}/crew", handleCrewAssign(deps.Episodes))
			r.Get("/{episodeId}/crew", handleCrewList(deps.Episodes))
			r.Delete("/{episodeId}/crew/{assignmentId}", handleCrewRemove(deps.Episodes))

			r.Get("/{episodeId}/workflow", handleWorkflowState(deps.Workflow))
			r.Post("/{episodeId}/transition", handleWorkflowTransition(deps.Workflow))
			r.Get("/{episodeId}/history", handleWorkflowHistory(deps.Workflow))
			r.Post("/{episodeId}/steps/{step}/start", handleStepStart(deps.Workflow))
			r.Post("/{episodeId}/steps/{step}/complete", handleStepComplete(deps.Workflow))
			r.Post("/{episodeId}/steps/{step}/assign", handleStepAssign(deps.Workflow))
			r.Put("/{episodeId}/steps/{step}/notes", handleStepNotes(deps.Workflow))
			r.Post("/{episodeId}/steps/{step}/reset", handleStepReset(deps.Workflow))

			r.Get("/{episodeId}/deadlines", handleDeadlineListByEpisode(deps.Deadlines))
			r.Get("/{episodeId}/equipment", handleRequestListByEpisode(deps.Inventory))
		})

		r.Route("/deadlines", func(r chi.Router) {
			r.Get("/mine", handleDeadlineListMine(deps.Deadlines))
			r.Get("/overdue", handleDeadlineOverdue(deps.Deadlines))
			r.Get("/upcoming", handleDeadlineUpcoming(deps.Deadlines, deps.Config.Deadlines.ReminderHorizon))
			r.Get("/statistics", handleDeadlineStatistics(deps.Deadlines))
			r.Get("/{deadlineId}", handleDeadlineGet(deps.Deadlines))
			r.Post("/{deadlineId}/complete", handleDeadlineComplete(deps.Deadlines))
			r.Post("/{deadlineId}/cancel", handleDeadlineCancel(deps.Deadlines))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/items", handleItemAdd(deps.Inventory))
			r.Get("/items", handleItemList(deps.Inventory))
			r.Put("/items/{itemId}/status", handleItemStatus(deps.Inventory))
			r.Get("/statistics", handleInventoryStatistics(deps.Inventory))
		})

		r.Route("/equipment/requests", func(r chi.Router) {
			r.Post("/", handleRequestCreate(deps.Inventory))
			r.Get("/{requestId}", handleRequestGet(deps.Inventory))
			r.Post("/{requestId}/approve", handleRequestApprove(deps.Inventory))
			r.Post("/{requestId}/reject", handleRequestReject(deps.Inventory))
			r.Post("/{requestId}/return", handleRequestReturn(deps.Inventory))
		})

		r.Route("/reassignments", func(r chi.Router) {
			r.Post("/", handleReassign(deps.Reassign))
			r.Get("/{taskType}/eligible", handleEligibleUsers(deps.Reassign))
			r.Get("/{taskType}/{taskId}", handleReassignHistory(deps.Reassign))
		})
	})

	return r
}

// actorFrom extracts the authenticated actor from the request context. When
// no request context is present it writes a 403 and reports false.
func actorFrom(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	rctx := model.RequestContextFrom(r.Context())
	if rctx == nil {
		WriteError(w, model.NewUnauthorizedError("missing request context"))
		return model.Actor{}, false
	}
	return rctx.Actor(), true
}
