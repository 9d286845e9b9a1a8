package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenroomhq/greenroom/internal/config"
	"github.com/greenroomhq/greenroom/internal/deadline"
	"github.com/greenroomhq/greenroom/internal/directory"
	"github.com/greenroomhq/greenroom/internal/episode"
	"github.com/greenroomhq/greenroom/internal/inventory"
	"github.com/greenroomhq/greenroom/internal/observability"
	"github.com/greenroomhq/greenroom/internal/reassign"
	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/internal/workflow"
	"github.com/greenroomhq/greenroom/model"
)

// testActor carries the identity a test request runs as.
type testActor struct {
	Sub  string
	Name string
	Role string
}

var (
	asManager  = testActor{Sub: "user-maya", Name: "Maya", Role: "production_manager"}
	asProducer = testActor{Sub: "user-alice", Name: "Alice", Role: "producer"}
	asEditor   = testActor{Sub: "user-bob", Name: "Bob", Role: "editor"}
	asDesigner = testActor{Sub: "user-sam", Name: "Sam", Role: "art_set_designer"}
)

// headerAuth is a test stand-in for the JWT middleware. It builds claims from
// request headers so each test request can pick its own identity.
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := r.Header.Get("X-Test-Sub")
		if sub == "" {
			WriteUnauthenticated(w, "Missing authorization header")
			return
		}
		ctx := WithClaims(r.Context(), map[string]any{
			"sub":  sub,
			"role": r.Header.Get("X-Test-Role"),
			"name": r.Header.Get("X-Test-Name"),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func testDirectory() *directory.Static {
	return directory.NewStatic([]model.User{
		{ID: "user-maya", Name: "Maya", Role: model.RoleProductionManager},
		{ID: "user-alice", Name: "Alice", Role: model.RoleProducer},
		{ID: "user-bob", Name: "Bob", Role: model.RoleEditor},
		{ID: "user-sam", Name: "Sam", Role: model.RoleArtSetDesigner},
		{ID: "user-dana", Name: "Dana", Role: model.RoleEditor},
	})
}

// newTestRouter wires the full core over memory stores behind the router.
func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	tables := roles.Defaults()
	epStore := episode.NewMemoryStore()

	scheduler := deadline.NewScheduler(
		deadline.NewMemoryStore(), tables, episode.AirDates{Store: epStore},
		deadline.NewMemoryReminderLog(), nil,
	)
	engine := workflow.NewEngine(workflow.NewMemoryStore(), tables, scheduler, nil)
	allocator := inventory.NewAllocator(inventory.NewMemoryStore(), tables, engine, nil)
	service := episode.NewService(epStore, tables, engine, scheduler, allocator)

	writers := map[model.TaskType]reassign.TaskWriter{
		model.TaskWorkflowStep:     reassign.TaskWriterFunc(engine.SetStepAssignee),
		model.TaskDeadline:         reassign.TaskWriterFunc(scheduler.SetAssignee),
		model.TaskEquipmentRequest: reassign.TaskWriterFunc(allocator.SetRequestAssignee),
	}
	auditor := reassign.NewAuditor(reassign.NewMemoryStore(), tables, testDirectory(), writers, nil)

	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = 5 * time.Second
	cfg.Observability.Metrics.Enabled = false

	return NewRouter(Dependencies{
		Config:       cfg,
		Authenticate: headerAuth,
		Ready: observability.HandleReady(observability.ReadinessChecks{
			RolesLoaded: func() bool { return true },
		}),
		Episodes:  service,
		Workflow:  engine,
		Deadlines: scheduler,
		Inventory: allocator,
		Reassign:  auditor,
	})
}

// doJSON issues a request as the given actor and decodes the JSON response
// into out when it is non-nil.
func doJSON(t *testing.T, r http.Handler, actor testActor, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if actor.Sub != "" {
		req.Header.Set("X-Test-Sub", actor.Sub)
		req.Header.Set("X-Test-Role", actor.Role)
		req.Header.Set("X-Test-Name", actor.Name)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v (body %s)", method, path, err, w.Body.String())
		}
	}
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v (body %s)", err, w.Body.String())
	}
	return resp.Error.Code
}

// createTestEpisode creates a program and an episode through the API and
// returns the episode.
func createTestEpisode(t *testing.T, r http.Handler) model.Episode {
	t.Helper()

	var program model.Program
	w := doJSON(t, r, asManager, "POST", "/programs", `{"name":"Morning Show"}`, &program)
	if w.Code != 201 {
		t.Fatalf("create program: status = %d, body %s", w.Code, w.Body.String())
	}

	airDate := time.Now().UTC().AddDate(0, 0, 30).Format(time.RFC3339)
	var ep model.Episode
	w = doJSON(t, r, asProducer, "POST", "/episodes",
		`{"program_id":"`+program.ID+`","title":"Pilot","air_date":"`+airDate+`"}`, &ep)
	if w.Code != 201 {
		t.Fatalf("create episode: status = %d, body %s", w.Code, w.Body.String())
	}
	return ep
}

// --- Router tests ---

func TestNewRouter_health(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var body observability.HealthResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestNewRouter_ready(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))

	if w.Code != 200 {
		t.Errorf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestNewRouter_healthBypassesAuth(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	// No identity headers at all.
	r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != 200 {
		t.Errorf("health should not require auth, status = %d", w.Code)
	}
}

func TestNewRouter_authRequired(t *testing.T) {
	r := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/programs"},
		{"GET", "/episodes/ep-1"},
		{"GET", "/deadlines/mine"},
		{"GET", "/inventory/items"},
		{"GET", "/reassignments/deadline/task-1"},
	}
	for _, p := range paths {
		w := doJSON(t, r, testActor{}, p.method, p.path, "", nil)
		if w.Code != 401 {
			t.Errorf("%s %s without identity: status = %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestNewRouter_unknownRoleRejected(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, testActor{Sub: "user-x", Role: "astronaut"}, "GET", "/programs", "", nil)
	if w.Code != 403 {
		t.Errorf("status = %d, want 403 for unknown role", w.Code)
	}
}

func TestNewRouter_correlationIDHeader(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Correlation-Id", "corr-42")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-Id"); got != "corr-42" {
		t.Errorf("X-Correlation-Id = %q, want corr-42", got)
	}
}

func TestNewRouter_notFoundRoute(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, asProducer, "GET", "/no/such/route", "", nil)
	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestNewRouter_episodeLifecycle(t *testing.T) {
	r := newTestRouter(t)
	ep := createTestEpisode(t, r)

	var got model.Episode
	w := doJSON(t, r, asEditor, "GET", "/episodes/"+ep.ID, "", &got)
	if w.Code != 200 {
		t.Fatalf("get episode: status = %d", w.Code)
	}
	if got.Title != "Pilot" {
		t.Errorf("title = %q, want Pilot", got.Title)
	}

	// Creating the episode seeds workflow state and deadlines.
	var state struct {
		State model.WorkflowState `json:"state"`
		Steps []model.StepView    `json:"steps"`
	}
	w = doJSON(t, r, asEditor, "GET", "/episodes/"+ep.ID+"/workflow", "", &state)
	if w.Code != 200 {
		t.Fatalf("get workflow: status = %d", w.Code)
	}
	if state.State.CurrentState != model.StagePlanning {
		t.Errorf("stage = %s, want planning", state.State.CurrentState)
	}
	if len(state.Steps) != model.StepCount {
		t.Errorf("steps = %d, want %d", len(state.Steps), model.StepCount)
	}

	var deadlines []model.Deadline
	w = doJSON(t, r, asManager, "GET", "/episodes/"+ep.ID+"/deadlines", "", &deadlines)
	if w.Code != 200 {
		t.Fatalf("get deadlines: status = %d", w.Code)
	}
	if len(deadlines) == 0 {
		t.Error("episode creation should generate deadlines")
	}
}

func TestNewRouter_equipmentFlow(t *testing.T) {
	r := newTestRouter(t)
	ep := createTestEpisode(t, r)

	var item model.InventoryItem
	w := doJSON(t, r, asManager, "POST", "/inventory/items",
		`{"name":"camera-a7","category":"camera"}`, &item)
	if w.Code != 201 {
		t.Fatalf("add item: status = %d, body %s", w.Code, w.Body.String())
	}

	due := time.Now().UTC().AddDate(0, 0, 7).Format(time.RFC3339)
	var req model.EquipmentRequest
	w = doJSON(t, r, asProducer, "POST", "/equipment/requests",
		`{"episode_id":"`+ep.ID+`","items":["camera-a7"],"return_due":"`+due+`"}`, &req)
	if w.Code != 201 {
		t.Fatalf("create request: status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, asManager, "POST", "/equipment/requests/"+req.ID+"/approve", "", &req)
	if w.Code != 200 {
		t.Fatalf("approve: status = %d, body %s", w.Code, w.Body.String())
	}

	var reqs []model.EquipmentRequest
	w = doJSON(t, r, asManager, "GET", "/episodes/"+ep.ID+"/equipment", "", &reqs)
	if w.Code != 200 || len(reqs) != 1 {
		t.Fatalf("list requests: status = %d, len = %d", w.Code, len(reqs))
	}
}

func TestNewRouter_reassignmentFlow(t *testing.T) {
	r := newTestRouter(t)
	ep := createTestEpisode(t, r)

	var deadlines []model.Deadline
	doJSON(t, r, asManager, "GET", "/episodes/"+ep.ID+"/deadlines", "", &deadlines)
	if len(deadlines) == 0 {
		t.Fatal("no deadlines generated")
	}
	target := deadlines[0]

	var record model.ReassignmentRecord
	w := doJSON(t, r, asManager, "POST", "/reassignments",
		`{"task_type":"deadline","task_id":"`+target.ID+`","new_assignee":"user-bob","reason":"vacation"}`, &record)
	if w.Code != 201 {
		t.Fatalf("reassign: status = %d, body %s", w.Code, w.Body.String())
	}
	if record.NewAssignee != "user-bob" {
		t.Errorf("new assignee = %q, want user-bob", record.NewAssignee)
	}

	var history []model.ReassignmentRecord
	w = doJSON(t, r, asManager, "GET", "/reassignments/deadline/"+target.ID, "", &history)
	if w.Code != 200 || len(history) != 1 {
		t.Fatalf("history: status = %d, len = %d", w.Code, len(history))
	}

	// Non-managers cannot reassign.
	w = doJSON(t, r, asProducer, "POST", "/reassignments",
		`{"task_type":"deadline","task_id":"`+target.ID+`","new_assignee":"user-dana"}`, nil)
	if w.Code != 403 {
		t.Errorf("reassign as producer: status = %d, want 403", w.Code)
	}
}

func TestNewRouter_eligibleUsers(t *testing.T) {
	r := newTestRouter(t)

	var users []model.User
	w := doJSON(t, r, asManager, "GET", "/reassignments/deadline/eligible", "", &users)
	if w.Code != 200 {
		t.Fatalf("eligible: status = %d, body %s", w.Code, w.Body.String())
	}
	if len(users) == 0 {
		t.Error("expected eligible users for deadline tasks")
	}

	w = doJSON(t, r, asManager, "GET", "/reassignments/bogus/eligible", "", nil)
	if w.Code != 400 {
		t.Errorf("bogus task type: status = %d, want 400", w.Code)
	}
}

func TestNewRouter_workflowViewWireKeys(t *testing.T) {
	r := newTestRouter(t)
	ep := createTestEpisode(t, r)

	var body struct {
		Steps []map[string]json.RawMessage `json:"steps"`
	}
	w := doJSON(t, r, asEditor, "GET", "/episodes/"+ep.ID+"/workflow", "", &body)
	if w.Code != 200 {
		t.Fatalf("get workflow: status = %d", w.Code)
	}
	if len(body.Steps) == 0 {
		t.Fatal("workflow view has no steps")
	}
	// Clients key on the lowercase field names, so the nested progress
	// object must serialize as "progress".
	for _, step := range body.Steps {
		if _, ok := step["progress"]; !ok {
			t.Fatalf("step is missing the progress key: %v", step)
		}
	}
}

func TestNewRouter_deadlineStatisticsUserFilter(t *testing.T) {
	r := newTestRouter(t)
	ep := createTestEpisode(t, r)

	var all model.DeadlineStatistics
	w := doJSON(t, r, asManager, "GET", "/deadlines/statistics?episode_id="+ep.ID, "", &all)
	if w.Code != 200 {
		t.Fatalf("statistics: status = %d", w.Code)
	}
	if all.Total == 0 {
		t.Fatal("episode creation should generate deadlines")
	}

	// Generated deadlines start unassigned, so a user filter excludes
	// them all.
	var filtered model.DeadlineStatistics
	w = doJSON(t, r, asManager, "GET", "/deadlines/statistics?episode_id="+ep.ID+"&user_id=user-ghost", "", &filtered)
	if w.Code != 200 {
		t.Fatalf("filtered statistics: status = %d", w.Code)
	}
	if filtered.Total != 0 {
		t.Errorf("filtered total = %d, want 0", filtered.Total)
	}
}
