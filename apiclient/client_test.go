package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-resource-list/pkg/testsupport"
	"github.com/goliatone/go-resource-list/query"
	"github.com/goliatone/go-resource-list/resource"
)

type recruitment struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Team   string `json:"team"`
	Status string `json:"status"`
}

var _ resource.Repository[recruitment] = (*Resource[recruitment])(nil)

func newClient(t *testing.T, handler http.Handler, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"
	cfg.Token = "secret"
	for _, fn := range mutate {
		fn(&cfg)
	}
	c, err := New(cfg, WithLogger(testsupport.Logger(t)))
	require.NoError(t, err)
	return c
}

func TestResource_List(t *testing.T) {
	fixture := testsupport.LoadFixture(t, testsupport.FixturePath("recruitments_page.json"))

	var got *http.Request
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))

	key := query.NewKey("recruitments", query.FilterSet{"team": "T2", "search": "analyst", "status": ""}, query.PageSpec{Index: 2, Size: 10})
	page, err := NewResource[recruitment](c, "recruitments").List(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, 12, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "r-101", page.Items[0].ID)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/recruitments", got.URL.Path)
	assert.Equal(t, "page=2&pageSize=10&search=analyst&team=T2", got.URL.RawQuery)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
}

func TestResource_ListEmptyItems(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"total": 0}`)
	}))

	page, err := NewResource[recruitment](c, "recruitments").List(context.Background(), query.NewKey("recruitments", nil, query.PageSpec{Index: 1, Size: 10}))
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestResource_Writes(t *testing.T) {
	var calls []string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var rec recruitment
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
			if rec.ID == "" {
				rec.ID = "r-200"
			}
			_ = json.NewEncoder(w).Encode(rec)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(recruitment{ID: "r-200", Title: "Designer"})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	res := NewResource[recruitment](c, "recruitments")
	ctx := context.Background()

	created, err := res.Create(ctx, recruitment{Title: "Designer"})
	require.NoError(t, err)
	assert.Equal(t, "r-200", created.ID)

	fetched, err := res.GetByID(ctx, "r-200")
	require.NoError(t, err)
	assert.Equal(t, "Designer", fetched.Title)

	updated, err := res.Update(ctx, "r-200", recruitment{ID: "r-200", Title: "Product designer"})
	require.NoError(t, err)
	assert.Equal(t, "Product designer", updated.Title)

	require.NoError(t, res.Delete(ctx, "r-200"))

	assert.Equal(t, []string{
		"POST /api/recruitments",
		"GET /api/recruitments/r-200",
		"PUT /api/recruitments/r-200",
		"DELETE /api/recruitments/r-200",
	}, calls)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		category goerrors.Category
		message  string
	}{
		{http.StatusBadRequest, `{"message":"invalid team"}`, goerrors.CategoryBadInput, "invalid team"},
		{http.StatusUnprocessableEntity, `{"error":"title required"}`, goerrors.CategoryBadInput, "title required"},
		{http.StatusUnauthorized, ``, goerrors.CategoryAuth, "Unauthorized"},
		{http.StatusForbidden, ``, goerrors.CategoryAuthz, "Forbidden"},
		{http.StatusNotFound, `not json`, goerrors.CategoryNotFound, "Not Found"},
		{http.StatusConflict, `{}`, goerrors.CategoryConflict, "Conflict"},
		{http.StatusTooManyRequests, ``, goerrors.CategoryRateLimit, "Too Many Requests"},
		{http.StatusBadGateway, ``, goerrors.CategoryExternal, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			err := NewResource[recruitment](c, "recruitments").Delete(context.Background(), "r-1")
			require.Error(t, err)

			var e *goerrors.Error
			require.True(t, goerrors.As(err, &e))
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.status, e.Code)
			assert.Equal(t, tt.message, e.Message)
		})
	}
}

func TestClient_RateLimit(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}), func(cfg *Config) {
		cfg.RateLimit = 0.001
		cfg.Burst = 1
	})

	require.NoError(t, c.Do(context.Background(), http.MethodGet, "ping", nil, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Do(ctx, http.MethodGet, "ping", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryRateLimit))
	assert.EqualValues(t, 1, hits.Load())
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", errors.New("token expired")
}

func TestClient_TokenSource(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	WithTokenSource(failingTokens{})(c)

	err := c.Do(context.Background(), http.MethodGet, "ping", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuth))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "base url is required")

	cfg.BaseURL = "/relative"
	assert.Error(t, cfg.Validate())

	cfg.BaseURL = "https://console.example.com/api"
	assert.NoError(t, cfg.Validate())

	cfg.RateLimit = 5
	cfg.Burst = 0
	assert.Error(t, cfg.Validate())

	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryValidation))
}
