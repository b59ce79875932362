package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"plugin-chat-go/internal/model"
	"plugin-chat-go/internal/repository"
	"plugin-chat-go/internal/service"
)

type stubAdmin struct {
	lastQuery string
}

func (s *stubAdmin) AllQueries(_ context.Context, q string) ([]model.QueryRow, error) {
	s.lastQuery = q
	return []model.QueryRow{{ID: "m1", UserMessage: "hi", AssistantResponse: "hello"}}, nil
}

type stubPrompts struct {
	cacheable map[string]bool
}

func (s *stubPrompts) Catalog(context.Context) (*service.PromptCatalog, error) {
	return &service.PromptCatalog{Predefined: []model.PredefinedPrompt{}, Popular: []model.PopularPrompt{}}, nil
}

func (s *stubPrompts) ListPopular(context.Context) ([]model.PopularPrompt, error) {
	return []model.PopularPrompt{{ID: "p1", Prompt: "x", SearchCount: 3}}, nil
}

func (s *stubPrompts) UpdatePopularText(_ context.Context, id, prompt string) (*model.PopularPrompt, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, service.ErrInvalidInput
	}
	return &model.PopularPrompt{ID: id, Prompt: prompt}, nil
}

func (s *stubPrompts) SetCacheable(_ context.Context, id string, cacheable bool) (*model.PopularPrompt, error) {
	if id == "missing" {
		return nil, repository.ErrNotFound
	}
	s.cacheable[id] = cacheable
	return &model.PopularPrompt{ID: id, Cacheable: cacheable}, nil
}

func (s *stubPrompts) SeedPredefined(context.Context) error { return nil }

type stubTemplates struct {
	created []bool
}

func (s *stubTemplates) List(context.Context) ([]model.PromptTemplate, error) {
	return []model.PromptTemplate{}, nil
}

func (s *stubTemplates) Create(_ context.Context, tpl model.PromptTemplate, activate bool) (*model.PromptTemplate, error) {
	s.created = append(s.created, activate)
	tpl.ID = "t1"
	return &tpl, nil
}

func (s *stubTemplates) Update(_ context.Context, id string, tpl model.PromptTemplate, activate bool) (*model.PromptTemplate, error) {
	if id != "t1" {
		return nil, repository.ErrNotFound
	}
	tpl.ID = id
	return &tpl, nil
}

func (s *stubTemplates) SetStatus(_ context.Context, id string, status model.TemplateStatus) (*model.PromptTemplate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", service.ErrInvalidInput, status)
	}
	return &model.PromptTemplate{ID: id, Status: status}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newAdminRouter() (*gin.Engine, *stubAdmin, *stubPrompts, *stubTemplates) {
	gin.SetMode(gin.TestMode)
	admin := &stubAdmin{}
	prompts := &stubPrompts{cacheable: map[string]bool{}}
	templates := &stubTemplates{}
	h := NewAdminHandler(admin, prompts, templates)

	r := gin.New()
	g := r.Group("/api/v1/admin")
	g.GET("/queries", h.ListQueries)
	g.GET("/popular-prompts", h.ListPopularPrompts)
	g.PUT("/popular-prompts/:id", h.UpdatePopularPrompt)
	g.PUT("/popular-prompts/:id/cacheable", h.SetPromptCacheable)
	g.GET("/templates", h.ListTemplates)
	g.POST("/templates", h.CreateTemplate)
	g.PUT("/templates/:id", h.UpdateTemplate)
	g.PUT("/templates/:id/status", h.SetTemplateStatus)
	r.GET("/api/v1/prompts", NewPromptHandler(prompts).GetPrompts)
	return r, admin, prompts, templates
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestListQueriesPassesFilter(t *testing.T) {
	r, admin, _, _ := newAdminRouter()

	w, env := do(r, http.MethodGet, "/api/v1/admin/queries?q=routing", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "routing", admin.lastQuery)

	var rows []model.QueryRow
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "hello", rows[0].AssistantResponse)
}

func TestPopularPromptEndpoints(t *testing.T) {
	r, _, prompts, _ := newAdminRouter()

	w, _ := do(r, http.MethodGet, "/api/v1/admin/popular-prompts", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(r, http.MethodPut, "/api/v1/admin/popular-prompts/p1", `{"prompt":"  "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPut, "/api/v1/admin/popular-prompts/p1/cacheable", `{"cacheable":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]bool{"p1": false}, prompts.cacheable)

	w, _ = do(r, http.MethodPut, "/api/v1/admin/popular-prompts/p1/cacheable", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPut, "/api/v1/admin/popular-prompts/missing/cacheable", `{"cacheable":true}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplateEndpoints(t *testing.T) {
	r, _, _, templates := newAdminRouter()

	w, env := do(r, http.MethodPost, "/api/v1/admin/templates", `{"name":"Support","systemPrompt":"be nice","activate":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []bool{true}, templates.created)
	var tpl model.PromptTemplate
	require.NoError(t, json.Unmarshal(env.Data, &tpl))
	require.Equal(t, "Support", tpl.Name)
	require.Equal(t, "be nice", tpl.SystemPrompt)

	w, _ = do(r, http.MethodPut, "/api/v1/admin/templates/nope", `{"name":"x"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(r, http.MethodPut, "/api/v1/admin/templates/t1/status", `{"status":"archived"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(r, http.MethodPut, "/api/v1/admin/templates/t1/status", `{"status":"inactive"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &tpl))
	require.Equal(t, model.TemplateInactive, tpl.Status)
}

func TestGetPrompts(t *testing.T) {
	r, _, _, _ := newAdminRouter()

	w, env := do(r, http.MethodGet, "/api/v1/prompts", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "success", env.Message)
	require.JSONEq(t, `{"predefined":[],"popular":[]}`, string(env.Data))
}
