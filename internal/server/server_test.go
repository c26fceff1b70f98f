package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/graphweave/graphrag/internal/queue"
	mid "github.com/graphweave/graphrag/internal/server/middleware"
	"github.com/graphweave/graphrag/pkg/ai/aitest"
	"github.com/graphweave/graphrag/pkg/common"
	"github.com/graphweave/graphrag/pkg/query"
	"github.com/graphweave/graphrag/pkg/store/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rabbitmq/amqp091-go"
)

const testAPIKey = "secret-key"

var testJWTSecret = []byte("jwt-secret")

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	body [][]byte
}

func (p *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.body = append(p.body, msg.Body)
	return nil
}

func newTestApp(t *testing.T) (*mid.App, *aitest.Client) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	rome, _ := st.UpsertNode(ctx, "Rome", "LOCATION")
	venice, _ := st.UpsertNode(ctx, "Venice", "LOCATION")
	for _, r := range []common.Relationship{
		{SourceID: rome, TargetID: venice, Label: "connected", Weight: 1},
		{SourceID: venice, TargetID: rome, Label: "connected", Weight: 1},
	} {
		if err := st.UpsertEdge(ctx, r, common.EdgeAdd); err != nil {
			t.Fatalf("UpsertEdge() error = %v", err)
		}
	}
	fake := aitest.NewClient(8)
	err := st.ReplaceCommunities(ctx, []common.Community{{
		ID:               1,
		Members:          []int64{rome, venice},
		Summary:          "Rome and Venice are connected cities.",
		SummaryEmbedding: aitest.HashEmbedding("Rome and Venice are connected cities.", fake.Dim),
	}})
	if err != nil {
		t.Fatalf("ReplaceCommunities() error = %v", err)
	}

	return &mid.App{
		Graph:     st,
		Engine:    query.NewEngine(query.EngineParams{Store: st, Completer: fake, Embedder: fake, EmbeddingDim: fake.Dim}),
		APIKey:    testAPIKey,
		JWTSecret: testJWTSecret,
	}, fake
}

func do(t *testing.T, a *mid.App, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	New(a).ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestHealth(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuth_MissingToken(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodGet, "/api/communities", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_WrongSigningSecret(t *testing.T) {
	a, _ := newTestApp(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "role": "admin"}).SignedString([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	rec := do(t, a, http.MethodGet, "/api/communities", token, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_JWTPermissions(t *testing.T) {
	a, _ := newTestApp(t)
	token := signToken(t, jwt.MapClaims{"sub": "u1", "permissions": []string{mid.PermissionQuery}})

	rec := do(t, a, http.MethodGet, "/api/communities", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("communities status = %d, want 403", rec.Code)
	}

	rec = do(t, a, http.MethodPost, "/api/query/local", token, `{"question":"What is Rome?","entity":"Rome"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("local query status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAuth_Disabled(t *testing.T) {
	a, _ := newTestApp(t)
	a.AuthDisabled = true
	rec := do(t, a, http.MethodGet, "/api/communities", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestLocalQuery_ReturnsAnswerAndContext(t *testing.T) {
	a, fake := newTestApp(t)
	rec := do(t, a, http.MethodPost, "/api/query/local", testAPIKey, `{"question":"What is Rome?","entity":"Rome"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Answer  string                   `json:"answer"`
		Context query.QueryTraceSnapshot `json:"context"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Answer, "Rome is connected to Venice (weight: 1)") {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if len(resp.Context.EntityIDs) != 1 || len(resp.Context.Relationships) != 2 {
		t.Fatalf("context = %+v", resp.Context)
	}
	if len(fake.Prompts()) != 1 {
		t.Fatalf("completion calls = %d, want 1", len(fake.Prompts()))
	}
}

func TestLocalQuery_UnknownEntitySentinel(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodPost, "/api/query/local", testAPIKey, `{"question":"Who?","entity":"Atlantis"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Entity Atlantis not found.") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestLocalQuery_MissingEntityIsBadRequest(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodPost, "/api/query/local", testAPIKey, `{"question":"Who?"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGlobalQuery_UsesCommunitySummaries(t *testing.T) {
	a, fake := newTestApp(t)
	rec := do(t, a, http.MethodPost, "/api/query/global", testAPIKey, `{"question":"Which cities are connected?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	prompts := fake.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "Rome and Venice are connected cities.") {
		t.Fatalf("prompts = %q", prompts)
	}
	if !strings.Contains(rec.Body.String(), `"community_ids":[1]`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestGlobalQuery_BlankQuestionIsBadRequest(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodPost, "/api/query/global", testAPIKey, `{"question":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetCommunities(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodGet, "/api/communities", testAPIKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []common.Community
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Summary != "Rome and Venice are connected cities." {
		t.Fatalf("communities = %+v", got)
	}
}

func TestGetEntity(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodGet, "/api/entities/Rome", testAPIKey, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"target":"Venice"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = do(t, a, http.MethodGet, "/api/entities/Atlantis", testAPIKey, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPostIndex_PublishesRequest(t *testing.T) {
	a, _ := newTestApp(t)
	pub := &fakePublisher{}
	a.Queue = pub

	rec := do(t, a, http.MethodPost, "/api/index", testAPIKey, `{"reason":"upload"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(pub.keys) != 1 || pub.keys[0] != queue.IndexQueue {
		t.Fatalf("published to %v", pub.keys)
	}
	req, err := queue.DecodeIndexRequest(pub.body[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Reason != "upload" || req.RequestID == "" {
		t.Fatalf("request = %+v", req)
	}
}

func TestPostIndex_NoQueue(t *testing.T) {
	a, _ := newTestApp(t)
	rec := do(t, a, http.MethodPost, "/api/index", testAPIKey, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
