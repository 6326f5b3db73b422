package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"feedkeep/internal/filter"
	"feedkeep/internal/handler"
	"feedkeep/internal/kvstore"
	"feedkeep/internal/model"
	"feedkeep/internal/notify"
	"feedkeep/internal/secrets"
	"feedkeep/internal/store"
)

type env struct {
	echo    *echo.Echo
	store   *store.Store
	secrets *secrets.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()

	kv := kvstore.NewMemory()
	st := store.New(kv, store.Config{PerFeedCap: 100, GlobalCap: 200, RetentionDays: 30})
	sec := secrets.New(kv, "test-key")
	engine := filter.New(st, notify.LogSink{})
	st.SetInvalidator(engine)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	e := echo.New()
	api := e.Group("/api")
	handler.NewFeedHandler(st, sec).RegisterRoutes(api)
	handler.NewItemHandler(st, engine).RegisterRoutes(api)
	handler.NewRuleHandler(st).RegisterRoutes(api)
	handler.NewOPMLHandler(st).RegisterRoutes(api)

	return &env{echo: e, store: st, secrets: sec}
}

func (te *env) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	te.echo.ServeHTTP(rec, req)
	return rec
}

func TestFeedCreate(t *testing.T) {
	te := newEnv(t)

	rec := te.do(http.MethodPost, "/api/feeds", `{"url":"https://example.com/feed","title":"Example"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var feed model.Feed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.NotZero(t, feed.ID)
	require.Equal(t, "Example", feed.Title)

	// Duplicate URL conflicts, case-insensitively.
	rec = te.do(http.MethodPost, "/api/feeds", `{"url":"https://EXAMPLE.com/feed"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Not a URL at all.
	rec = te.do(http.MethodPost, "/api/feeds", `{"url":"not a url"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedUpdateAndDelete(t *testing.T) {
	te := newEnv(t)
	feed, err := te.store.Subscribe("https://example.com/feed", "Old")
	require.NoError(t, err)

	rec := te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID), `{"title":"New"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Feed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "New", updated.Title)
	require.True(t, updated.CustomTitle)

	rec = te.do(http.MethodPut, "/api/feeds/999", `{"title":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = te.do(http.MethodPut, "/api/feeds/abc", `{"title":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = te.do(http.MethodDelete, "/api/feeds/"+itoa(feed.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, te.store.Feeds())
}

func TestFeedSetAuth_StoresAndClearsSecret(t *testing.T) {
	te := newEnv(t)
	feed, err := te.store.Subscribe("https://example.com/feed", "")
	require.NoError(t, err)
	ctx := context.Background()

	rec := te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID)+"/auth", `{"kind":"basic","secret":"user:pass"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	payload, err := te.secrets.Load(ctx, feed.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("user:pass"), payload)

	// Switching back to none removes the stored credential.
	rec = te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID)+"/auth", `{"kind":"none"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err = te.secrets.Load(ctx, feed.ID)
	require.ErrorIs(t, err, secrets.ErrNotFound)

	rec = te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID)+"/auth", `{"kind":"bogus"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedSetAuth_KindChangeDropsStaleSecret(t *testing.T) {
	te := newEnv(t)
	feed, err := te.store.Subscribe("https://example.com/feed", "")
	require.NoError(t, err)
	ctx := context.Background()

	rec := te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID)+"/auth", `{"kind":"basic","secret":"user:pass"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Switching schemes without a replacement secret must not carry the
	// basic payload over to bearer.
	rec = te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID)+"/auth", `{"kind":"bearer"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = te.secrets.Load(ctx, feed.ID)
	require.ErrorIs(t, err, secrets.ErrNotFound)

	got, err := te.store.Feed(feed.ID)
	require.NoError(t, err)
	require.Equal(t, model.AuthBearer, got.Auth)

	header, err := te.secrets.AuthHeader(ctx, got)
	require.NoError(t, err)
	require.Empty(t, header)

	// Re-sending the same kind with no secret keeps the existing one.
	rec = te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID)+"/auth", `{"kind":"bearer","secret":"tok"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = te.do(http.MethodPut, "/api/feeds/"+itoa(feed.ID)+"/auth", `{"kind":"bearer"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	payload, err := te.secrets.Load(ctx, feed.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("tok"), payload)
}

func TestItemList_FiltersAndToggles(t *testing.T) {
	te := newEnv(t)
	feed, err := te.store.Subscribe("https://example.com/feed", "")
	require.NoError(t, err)

	inserted := te.store.Merge(feed.ID, []model.ParsedItem{
		{SourceID: strptr("a"), Title: "Keep this", Link: "https://example.com/a"},
		{SourceID: strptr("b"), Title: "Spam offer", Link: "https://example.com/b"},
	})
	require.Len(t, inserted, 2)

	_, err = te.store.AddRule(model.FilterRule{
		Name:    "no spam",
		Enabled: true,
		Action:  model.ActionHide,
		Logic:   model.LogicAll,
		Conditions: []model.FilterCondition{
			{Field: model.FieldTitle, Comparator: model.CompareContains, Value: "spam"},
		},
	})
	require.NoError(t, err)

	rec := te.do(http.MethodGet, "/api/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var visible []model.FeedItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	require.Len(t, visible, 1)
	require.Equal(t, "Keep this", visible[0].Title)

	// all=1 includes the hidden item.
	rec = te.do(http.MethodGet, "/api/items?all=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	require.Len(t, visible, 2)

	// Read toggle, then unread-only view drops it.
	id := inserted[0].ID
	rec = te.do(http.MethodPost, "/api/items/"+itoa(id)+"/read", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = te.do(http.MethodGet, "/api/items?unread=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &visible))
	for _, item := range visible {
		require.NotEqual(t, id, item.ID)
	}

	rec = te.do(http.MethodPost, "/api/items/"+itoa(id)+"/star", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	item, err := te.store.Item(id)
	require.NoError(t, err)
	require.True(t, item.Starred)

	rec = te.do(http.MethodPost, "/api/items/999/read", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuleLifecycle(t *testing.T) {
	te := newEnv(t)

	body := `{"name":"r1","enabled":true,"action":"highlight","logic":"all",` +
		`"highlightColor":"#ff0000",` +
		`"conditions":[{"field":"title","comparator":"contains","value":"go"}]}`
	rec := te.do(http.MethodPost, "/api/rules", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var rule model.FilterRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	require.NotEmpty(t, rule.ID)

	// Invalid action rejected.
	rec = te.do(http.MethodPost, "/api/rules", `{"name":"bad","action":"explode","logic":"all","conditions":[{"field":"title","comparator":"contains","value":"x"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = te.do(http.MethodPost, "/api/rules/"+rule.ID+"/toggle", `{"enabled":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rules := te.store.Rules()
	require.Len(t, rules, 1)
	require.False(t, rules[0].Enabled)

	rec = te.do(http.MethodDelete, "/api/rules/"+rule.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, te.store.Rules())

	rec = te.do(http.MethodDelete, "/api/rules/"+rule.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOPMLImportExport(t *testing.T) {
	te := newEnv(t)
	_, err := te.store.Subscribe("https://example.com/existing", "Existing")
	require.NoError(t, err)

	doc := `<?xml version="1.0"?><opml version="2.0"><body>
	  <outline type="rss" title="New" xmlUrl="https://example.com/new"/>
	  <outline type="rss" title="Dup" xmlUrl="https://EXAMPLE.com/existing"/>
	</body></opml>`
	rec := te.do(http.MethodPost, "/api/opml/import", doc)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Added   int `json:"added"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 1, result.Added)
	require.Equal(t, 1, result.Skipped)

	rec = te.do(http.MethodPost, "/api/opml/import", "not opml")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = te.do(http.MethodGet, "/api/opml/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "feedkeep.opml")
	require.Contains(t, rec.Body.String(), "https://example.com/new")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func strptr(s string) *string { return &s }
