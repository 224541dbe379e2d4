//go:build !integration

package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/infra/web"
	"course-entitlement-platform/internal/usecase"
)

//
// ---------------- stub use cases ----------------
//

type stubProgressUC struct {
	saved []string // video ids
	err   error
}

func (s *stubProgressUC) SaveProgress(ctx context.Context, userID, videoID string, elapsedSec, durationSec int) (*model.VideoWatchProgress, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.saved = append(s.saved, videoID)
	p, _ := model.NewVideoWatchProgress(userID, videoID, elapsedSec, durationSec)
	return p, nil
}
func (s *stubProgressUC) CheckBadge(ctx context.Context, userID, packageID string) error { return nil }
func (s *stubProgressUC) SweepBadges(ctx context.Context, userID string) error           { return nil }
func (s *stubProgressUC) ResumePoints(ctx context.Context, userID string) ([]*model.ResumePoint, error) {
	return nil, nil
}

type stubRefundUC struct {
	created  []string // target ids
	decided  map[string]bool
	err      error
	pending  []*model.RefundRequest
	lastUser string
}

func (s *stubRefundUC) Create(ctx context.Context, userID string, targetType model.RefundTargetType, targetID, reason string) (*model.RefundRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastUser = userID
	s.created = append(s.created, targetID)
	return model.NewRefundRequest("req-1", userID, targetType, targetID, reason)
}
func (s *stubRefundUC) Decide(ctx context.Context, staffID, requestID string, approve bool) error {
	if s.err != nil {
		return s.err
	}
	if s.decided == nil {
		s.decided = map[string]bool{}
	}
	s.decided[requestID] = approve
	return nil
}
func (s *stubRefundUC) ListPending(ctx context.Context) ([]*model.RefundRequest, error) {
	return s.pending, nil
}

type stubEntitlementUC struct{ lastUser string }

func (s *stubEntitlementUC) Profile(ctx context.Context, userID string) (*usecase.Profile, error) {
	s.lastUser = userID
	return &usecase.Profile{}, nil
}

type stubNotificationUC struct{}

func (s *stubNotificationUC) Emit(ctx context.Context, batch []*model.Notification) {}
func (s *stubNotificationUC) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	return []*model.Notification{{ID: "n1", UserID: userID, Kind: model.NotificationKindRefund, CreatedAt: time.Now()}}, nil
}
func (s *stubNotificationUC) MarkRead(ctx context.Context, id, userID string) error {
	if id == "missing" {
		return domain.ErrNotFound
	}
	return nil
}

type stubPackageUC struct{}

func (s *stubPackageUC) Get(ctx context.Context, id string) (*model.Package, error) {
	return nil, domain.ErrNotFound
}
func (s *stubPackageUC) List(ctx context.Context) ([]*model.Package, error) { return nil, nil }
func (s *stubPackageUC) Videos(ctx context.Context, packageID string) ([]*model.Video, error) {
	return nil, nil
}

//
// ---------------- helpers ----------------
//

const jwtSecret = "test-secret"

type fixture struct {
	auth     *web.AuthManager
	progress *stubProgressUC
	refunds  *stubRefundUC
	profile  *stubEntitlementUC
	router   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		auth:     web.NewAuthManager(jwtSecret, time.Hour),
		progress: &stubProgressUC{},
		refunds:  &stubRefundUC{},
		profile:  &stubEntitlementUC{},
	}
	wh := web.NewWebhookHandler(&stubWebhookUC{}, testSecret, newLogger())
	srv := web.NewServer(wh, f.auth, f.progress, f.refunds, f.profile, &stubNotificationUC{}, &stubPackageUC{}, newLogger())
	f.router = srv.Router()
	return f
}

func (f *fixture) request(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) userToken(t *testing.T) string {
	t.Helper()
	tok, err := f.auth.Mint("user-1", false)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

func (f *fixture) staffToken(t *testing.T) string {
	t.Helper()
	tok, err := f.auth.Mint("staff-1", true)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return tok
}

//
// ---------------- tests ----------------
//

func TestRoutes_Auth(t *testing.T) {
	f := newFixture()

	t.Run("user routes reject missing token", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/v1/profile", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("user routes reject garbage token", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/v1/profile", "", "not-a-jwt")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("want 401, got %d", rec.Code)
		}
	})

	t.Run("admin routes reject non-staff sessions", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/v1/admin/refunds", "", f.userToken(t))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("want 403, got %d", rec.Code)
		}
	})

	t.Run("admin routes accept staff sessions", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/api/v1/admin/refunds", "", f.staffToken(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
		}
	})
}

func TestRoutes_Progress(t *testing.T) {
	t.Run("200 and server-derived completion in response", func(t *testing.T) {
		f := newFixture()
		body := `{"video_id":"vid-1","elapsed_sec":96,"duration_sec":100}`
		rec := f.request(t, http.MethodPost, "/api/v1/progress", body, f.userToken(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Completed bool `json:"completed"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Completed {
			t.Fatalf("96%% should complete")
		}
	})

	t.Run("invalid payload maps to 422", func(t *testing.T) {
		f := newFixture()
		f.progress.err = domain.ErrInvalidArgument
		body := `{"video_id":"vid-1","elapsed_sec":-4,"duration_sec":100}`
		rec := f.request(t, http.MethodPost, "/api/v1/progress", body, f.userToken(t))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("want 422, got %d", rec.Code)
		}
	})

	t.Run("unknown video maps to 404", func(t *testing.T) {
		f := newFixture()
		f.progress.err = domain.ErrNotFound
		body := `{"video_id":"vid-x","elapsed_sec":10,"duration_sec":100}`
		rec := f.request(t, http.MethodPost, "/api/v1/progress", body, f.userToken(t))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("want 404, got %d", rec.Code)
		}
	})
}

func TestRoutes_Refunds(t *testing.T) {
	t.Run("201 created with identity taken from the session", func(t *testing.T) {
		f := newFixture()
		body := `{"target_type":"purchase","target_id":"pur-1","reason":"changed my mind"}`
		rec := f.request(t, http.MethodPost, "/api/v1/refunds", body, f.userToken(t))
		if rec.Code != http.StatusCreated {
			t.Fatalf("want 201, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if f.refunds.lastUser != "user-1" {
			t.Fatalf("user id must come from the token, got %q", f.refunds.lastUser)
		}
	})

	t.Run("conflict mappings", func(t *testing.T) {
		cases := []struct {
			err  error
			want int
		}{
			{domain.ErrAlreadyRefunded, http.StatusConflict},
			{domain.ErrAlreadyExists, http.StatusConflict},
			{domain.ErrForbidden, http.StatusForbidden},
			{domain.ErrNotFound, http.StatusNotFound},
			{domain.ErrInvalidArgument, http.StatusUnprocessableEntity},
		}
		for _, tc := range cases {
			f := newFixture()
			f.refunds.err = tc.err
			body := `{"target_type":"purchase","target_id":"pur-1"}`
			rec := f.request(t, http.MethodPost, "/api/v1/refunds", body, f.userToken(t))
			if rec.Code != tc.want {
				t.Fatalf("%v: want %d, got %d", tc.err, tc.want, rec.Code)
			}
		}
	})

	t.Run("staff decision dispatches with staff identity", func(t *testing.T) {
		f := newFixture()
		rec := f.request(t, http.MethodPost, "/api/v1/admin/refunds/req-1/decision", `{"approve":true}`, f.staffToken(t))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("want 204, got %d, body=%s", rec.Code, rec.Body.String())
		}
		if approve, ok := f.refunds.decided["req-1"]; !ok || !approve {
			t.Fatalf("decision not dispatched: %v", f.refunds.decided)
		}
	})
}

func TestRoutes_ProfileAndNotifications(t *testing.T) {
	t.Run("profile serves the session user", func(t *testing.T) {
		f := newFixture()
		rec := f.request(t, http.MethodGet, "/api/v1/profile", "", f.userToken(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		if f.profile.lastUser != "user-1" {
			t.Fatalf("profile user = %q", f.profile.lastUser)
		}
	})

	t.Run("notifications list and mark read", func(t *testing.T) {
		f := newFixture()
		rec := f.request(t, http.MethodGet, "/api/v1/notifications?unread=true", "", f.userToken(t))
		if rec.Code != http.StatusOK {
			t.Fatalf("list: want 200, got %d", rec.Code)
		}
		rec = f.request(t, http.MethodPost, "/api/v1/notifications/n1/read", "", f.userToken(t))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("mark read: want 204, got %d", rec.Code)
		}
		rec = f.request(t, http.MethodPost, "/api/v1/notifications/missing/read", "", f.userToken(t))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("missing: want 404, got %d", rec.Code)
		}
	})
}
