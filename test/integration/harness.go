// Package integration provides a reusable test harness for end-to-end
// testing of the greenroom server. It starts a full HTTP server over
// in-memory stores with a local JWKS endpoint and test JWT issuer, so
// requests travel the same authentication path as production traffic.
package integration

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/greenroomhq/greenroom/internal/config"
	"github.com/greenroomhq/greenroom/internal/deadline"
	"github.com/greenroomhq/greenroom/internal/directory"
	"github.com/greenroomhq/greenroom/internal/episode"
	"github.com/greenroomhq/greenroom/internal/inventory"
	"github.com/greenroomhq/greenroom/internal/notify"
	"github.com/greenroomhq/greenroom/internal/observability"
	"github.com/greenroomhq/greenroom/internal/reassign"
	"github.com/greenroomhq/greenroom/internal/roles"
	"github.com/greenroomhq/greenroom/internal/transport"
	"github.com/greenroomhq/greenroom/internal/workflow"
	"github.com/greenroomhq/greenroom/model"
)

const (
	testIssuer   = "https://auth.test.local"
	testAudience = "greenroom"
	testKid      = "integration-key"
)

// TestHarness encapsulates a fully wired server instance.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	jwks   *httptest.Server
	key    *rsa.PrivateKey

	// Internal components exposed for advanced test scenarios.
	Engine        *workflow.Engine
	Scheduler     *deadline.Scheduler
	Allocator     *inventory.Allocator
	Episodes      *episode.Service
	Auditor       *reassign.Auditor
	Notifications *notify.CaptureSink
}

// NewTestHarness wires the core over memory stores and starts the server.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pub := &key.PublicKey
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kid": testKid,
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(jwksSrv.Close)

	cfg := config.Defaults()
	cfg.Identity.Issuer = testIssuer
	cfg.Identity.Audience = testAudience
	cfg.Identity.JWKSURL = jwksSrv.URL
	cfg.Server.HandlerTimeout = 10 * time.Second
	cfg.Observability.Metrics.Enabled = false

	tables := roles.Defaults()
	capture := notify.NewCaptureSink()
	dispatcher := notify.NewAsyncDispatcher(zap.NewNop(), 64, capture)
	t.Cleanup(dispatcher.Close)

	epStore := episode.NewMemoryStore()
	scheduler := deadline.NewScheduler(
		deadline.NewMemoryStore(), tables, episode.AirDates{Store: epStore},
		deadline.NewMemoryReminderLog(), dispatcher,
	)
	engine := workflow.NewEngine(workflow.NewMemoryStore(), tables, scheduler, dispatcher)
	allocator := inventory.NewAllocator(inventory.NewMemoryStore(), tables, engine, dispatcher)
	service := episode.NewService(epStore, tables, engine, scheduler, allocator)

	dir := directory.NewStatic([]model.User{
		{ID: "user-maya", Name: "Maya", Role: model.RoleProductionManager},
		{ID: "user-alice", Name: "Alice", Role: model.RoleProducer},
		{ID: "user-bob", Name: "Bob", Role: model.RoleEditor},
		{ID: "user-sam", Name: "Sam", Role: model.RoleArtSetDesigner},
	})
	writers := map[model.TaskType]reassign.TaskWriter{
		model.TaskWorkflowStep:     reassign.TaskWriterFunc(engine.SetStepAssignee),
		model.TaskDeadline:         reassign.TaskWriterFunc(scheduler.SetAssignee),
		model.TaskEquipmentRequest: reassign.TaskWriterFunc(allocator.SetRequestAssignee),
	}
	auditor := reassign.NewAuditor(reassign.NewMemoryStore(), tables, dir, writers, dispatcher)

	jwksClient := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, nil)
	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwksClient),
		Ready: observability.HandleReady(observability.ReadinessChecks{
			RolesLoaded: func() bool { return true },
		}),
		Episodes:  service,
		Workflow:  engine,
		Deadlines: scheduler,
		Inventory: allocator,
		Reassign:  auditor,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestHarness{
		t:             t,
		server:        srv,
		jwks:          jwksSrv,
		key:           key,
		Engine:        engine,
		Scheduler:     scheduler,
		Allocator:     allocator,
		Episodes:      service,
		Auditor:       auditor,
		Notifications: capture,
	}
}

// GenerateToken signs a JWT for the given claims with the harness key.
func (h *TestHarness) GenerateToken(claims jwt.MapClaims) string {
	h.t.Helper()

	if _, ok := claims["iss"]; !ok {
		claims["iss"] = testIssuer
	}
	if _, ok := claims["aud"]; !ok {
		claims["aud"] = testAudience
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(1 * time.Hour))
	}
	claims["iat"] = jwt.NewNumericDate(time.Now())

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	s, err := token.SignedString(h.key)
	if err != nil {
		h.t.Fatalf("SignedString: %v", err)
	}
	return s
}

// ManagerClaims returns claims for a production manager.
func ManagerClaims() jwt.MapClaims {
	return jwt.MapClaims{"sub": "user-maya", "name": "Maya", "role": "production_manager"}
}

// ProducerClaims returns claims for a producer.
func ProducerClaims() jwt.MapClaims {
	return jwt.MapClaims{"sub": "user-alice", "name": "Alice", "role": "producer"}
}

// EditorClaims returns claims for an editor.
func EditorClaims() jwt.MapClaims {
	return jwt.MapClaims{"sub": "user-bob", "name": "Bob", "role": "editor"}
}

// DesignerClaims returns claims for an art and set designer.
func DesignerClaims() jwt.MapClaims {
	return jwt.MapClaims{"sub": "user-sam", "name": "Sam", "role": "art_set_designer"}
}

// GET issues an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	return h.do("GET", path, nil, token)
}

// POST issues an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	return h.do("POST", path, body, token)
}

// PUT issues an authenticated PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any, token string) *http.Response {
	return h.do("PUT", path, body, token)
}

// DELETE issues an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	return h.do("DELETE", path, nil, token)
}

func (h *TestHarness) do(method, path string, body any, token string) *http.Response {
	h.t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, h.server.URL+path, rd)
	if err != nil {
		h.t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.server.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// AssertJSON checks the response status and decodes the body into out.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, wantStatus int, out any) {
	t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode body: %v (body %s)", err, data)
		}
	}
}

// AssertErrorCode checks the response status and error envelope code.
func (h *TestHarness) AssertErrorCode(t *testing.T, resp *http.Response, wantStatus int, wantCode string) {
	t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, wantStatus, data)
	}
	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode error body: %v (body %s)", err, data)
	}
	if body.Error.Code != wantCode {
		t.Errorf("error code = %s, want %s", body.Error.Code, wantCode)
	}
}

// CreateEpisode creates a program and episode, returning the episode.
func (h *TestHarness) CreateEpisode(t *testing.T, airDate time.Time) model.Episode {
	t.Helper()

	manager := h.GenerateToken(ManagerClaims())
	var program model.Program
	h.AssertJSON(t, h.POST("/programs", map[string]any{"name": "Evening News"}, manager), http.StatusCreated, &program)

	var ep model.Episode
	h.AssertJSON(t, h.POST("/episodes", map[string]any{
		"program_id": program.ID,
		"title":      "Episode 1",
		"air_date":   airDate,
	}, h.GenerateToken(ProducerClaims())), http.StatusCreated, &ep)
	return ep
}
