package campaigns

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/platform/validator"
)

func newTrackingEngine(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(newTestService(store, &fakeDispatcher{}, &captureBus{}), validator.New())
	engine := gin.New()
	h.RegisterTrackingRoutes(engine)
	return engine
}

func TestTrackClickRedirectPreservesEncodedLink(t *testing.T) {
	store := newFakeStore()
	engine := newTrackingEngine(store)

	leadID := uuid.New()
	campaignID := uuid.New()
	target := "https://shop.example.com/search?q=wall+art&page=2"
	wrapped := NewTracker("http://engine.local").WrapLink(leadID, campaignID, target)

	req := httptest.NewRequest(http.MethodGet, strings.TrimPrefix(wrapped, "http://engine.local"), nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != target {
		t.Errorf("Location = %q, want the original link %q", loc, target)
	}
	if store.clicks != 1 {
		t.Error("recipient click counter not updated")
	}
	if len(store.events) != 1 || store.events[0].LinkURL == nil || *store.events[0].LinkURL != target {
		t.Errorf("recorded events %+v, want one click holding the original link", store.events)
	}
}

func TestTrackClickRejectsNonHTTPLink(t *testing.T) {
	store := newFakeStore()
	engine := newTrackingEngine(store)

	path := "/track-email/" + uuid.New().String() + "/click?link=" + url.QueryEscape("javascript:alert(1)")
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if store.clicks != 0 || len(store.events) != 0 {
		t.Error("rejected link must not be recorded")
	}
}

func TestTrackOpenAlwaysServesPixel(t *testing.T) {
	store := newFakeStore()
	engine := newTrackingEngine(store)

	req := httptest.NewRequest(http.MethodGet, "/track-email/not-a-uuid/open", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("Content-Type = %q, want image/gif", ct)
	}
	if len(store.events) != 0 {
		t.Error("malformed lead id must not be recorded")
	}
}
