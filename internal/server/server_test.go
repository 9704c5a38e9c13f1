package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/tourdesk/internal/booking"
	"github.com/example/tourdesk/internal/db"
	"github.com/example/tourdesk/internal/dispatch"
	"github.com/example/tourdesk/internal/identity"
	"github.com/example/tourdesk/internal/maintenance"
	"github.com/example/tourdesk/internal/models"
	"github.com/example/tourdesk/internal/queue"
)

type allowAllResolver struct{}

func (allowAllResolver) Resolve(ctx context.Context, id string) (*identity.Identity, error) {
	return &identity.Identity{ID: id, DisplayName: "Test User"}, nil
}

type denyAllResolver struct{}

func (denyAllResolver) Resolve(ctx context.Context, id string) (*identity.Identity, error) {
	return nil, identity.ErrNotFound
}

func newTestRouter(t *testing.T, resolver identity.Resolver) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	q := queue.NewGormQueue(gdb)
	svc, err := booking.NewService(booking.Opts{DB: gdb, Queue: q, Resolver: resolver})
	if err != nil {
		t.Fatalf("booking service: %v", err)
	}
	d, err := dispatch.New(dispatch.Opts{Booking: svc, Queue: q, Resolver: resolver})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	sweeper, err := maintenance.New(maintenance.Opts{Booking: svc, Queue: q})
	if err != nil {
		t.Fatalf("sweeper: %v", err)
	}
	return NewRouter(svc, d, sweeper)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func sessionBody(user string) map[string]any {
	return map[string]any{
		"bookingUserId": user,
		"from":          "Harbor Gate",
		"to":            "Old Town",
		"departureTime": "2025-01-10T09:30:00Z",
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestCreateSession(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	w := doJSON(t, router, http.MethodPost, "/sessions", sessionBody("user-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	id, _ := body["id"].(string)
	if len(id) != 28 {
		t.Fatalf("session id = %q, want 28 chars", id)
	}
	if body["state"] != "QUEUED" {
		t.Fatalf("state = %v, want QUEUED", body["state"])
	}

	w = doJSON(t, router, http.MethodGet, "/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestCreateSessionBadRequest(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateSessionUnknownUser(t *testing.T) {
	router := newTestRouter(t, denyAllResolver{})
	w := doJSON(t, router, http.MethodPost, "/sessions", sessionBody("ghost"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCreateSessionCapacityExceeded(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	body := sessionBody("org")
	body["team"] = map[string]any{"name": "Big Group", "size": 6}
	if w := doJSON(t, router, http.MethodPost, "/sessions", body); w.Code != http.StatusCreated {
		t.Fatalf("first booking status = %d", w.Code)
	}

	body = sessionBody("org-2")
	body["team"] = map[string]any{"name": "Second Group", "size": 3}
	w := doJSON(t, router, http.MethodPost, "/sessions", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body %s", w.Code, w.Body.String())
	}
}

func TestGetSessionNotFound(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})
	w := doJSON(t, router, http.MethodGet, "/sessions/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSetSessionStateInvalid(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	w := doJSON(t, router, http.MethodPost, "/sessions", sessionBody("user-1"))
	id := decodeBody(t, w)["id"].(string)

	w = doJSON(t, router, http.MethodPatch, "/sessions/"+id+"/state", map[string]any{"state": "PAUSED"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPatch, "/sessions/"+id+"/state", map[string]any{"state": "ACTIVE"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestQueuePeekEmpty(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})
	w := doJSON(t, router, http.MethodGet, "/queue/next", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if body := decodeBody(t, w); body["empty"] != true {
		t.Fatalf("body = %v, want empty flag", body)
	}
}

func TestQueuePopActivate(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	if w := doJSON(t, router, http.MethodPost, "/sessions", sessionBody("user-1")); w.Code != http.StatusCreated {
		t.Fatalf("booking status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/queue/next", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("peek status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != models.QueueStatusWaiting {
		t.Fatalf("peek body = %v", body)
	}

	w = doJSON(t, router, http.MethodPost, "/queue/pop", map[string]any{"targetState": "ACTIVE"})
	if w.Code != http.StatusOK {
		t.Fatalf("pop status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["updatedCount"] != float64(1) {
		t.Fatalf("updatedCount = %v, want 1", body["updatedCount"])
	}

	w = doJSON(t, router, http.MethodPost, "/queue/pop", map[string]any{"targetState": "CANCEL"})
	if w.Code != http.StatusOK {
		t.Fatalf("second pop status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["empty"] != true {
		t.Fatalf("second pop body = %v, want empty flag", body)
	}
}

func TestQueuePopInvalidTarget(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})
	w := doJSON(t, router, http.MethodPost, "/queue/pop", map[string]any{"targetState": "DONE"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListQueue(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	for i := 0; i < 2; i++ {
		body := sessionBody(fmt.Sprintf("user-%d", i))
		body["departureTime"] = fmt.Sprintf("2025-01-10T%02d:15:00Z", 9+i)
		if w := doJSON(t, router, http.MethodPost, "/sessions", body); w.Code != http.StatusCreated {
			t.Fatalf("booking %d status = %d", i, w.Code)
		}
	}

	w := doJSON(t, router, http.MethodGet, "/queue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	tours, _ := body["tours"].([]any)
	if len(tours) != 2 {
		t.Fatalf("queued tours = %d, want 2", len(tours))
	}
}

func TestBookedHours(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	if w := doJSON(t, router, http.MethodPost, "/sessions", sessionBody("user-1")); w.Code != http.StatusCreated {
		t.Fatalf("booking status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodPost, "/tours/booked-hours", map[string]any{"date": "2025-01-10T00:00:00Z"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["maxCapacity"] != float64(8) {
		t.Fatalf("maxCapacity = %v, want 8", body["maxCapacity"])
	}
	hours, _ := body["bookedHours"].([]any)
	if len(hours) != 1 {
		t.Fatalf("bookedHours = %v, want 1 bucket", body["bookedHours"])
	}

	w = doJSON(t, router, http.MethodPost, "/tours/booked-hours", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing date status = %d, want 400", w.Code)
	}
}

func TestMaintenanceEndpoints(t *testing.T) {
	router := newTestRouter(t, allowAllResolver{})

	if w := doJSON(t, router, http.MethodPost, "/maintenance/clean", nil); w.Code != http.StatusOK {
		t.Fatalf("clean status = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/maintenance/expire", nil); w.Code != http.StatusOK {
		t.Fatalf("expire status = %d", w.Code)
	}
}
