package waitlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akeren/go-waitlist/assets"
	"github.com/akeren/go-waitlist/config/router"
	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/internal/view"
	apperrors "github.com/akeren/go-waitlist/pkg/errors"
	"github.com/akeren/go-waitlist/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRouter(t *testing.T, service WaitlistService, limiter ratelimit.RateLimiter) *router.RouterService {
	t.Helper()
	t.Setenv("METRICS_ENABLED", "false")

	rs := router.CreateRouterService(log.NewDiscardLogger(), nil, &router.RouterConfig{
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
	})

	rs.MountController(NewWaitlistController(
		func(*router.RouterService) WaitlistService { return service },
		view.NewRenderer(assets.TemplateFS),
		limiter,
	))

	return rs
}

func serve(rs *router.RouterService, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rs.GetEngine().ServeHTTP(w, req)
	return w
}

func preRegisterRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/pre-register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPreRegisterHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *MockWaitlistService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "success",
			body: `{"email":"user@example.com"}`,
			setup: func(m *MockWaitlistService) {
				m.EXPECT().Register(gomock.Any(), "user@example.com").Return(nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"ok":true}`,
		},
		{
			name: "invalid email",
			body: `{"email":"nope"}`,
			setup: func(m *MockWaitlistService) {
				m.EXPECT().Register(gomock.Any(), "nope").Return(apperrors.NewInvalidRequestError("invalid email", ErrInvalidEmail))
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid email"}`,
		},
		{
			name:       "malformed body",
			body:       `{"email":`,
			setup:      func(m *MockWaitlistService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid email"}`,
		},
		{
			name: "backend failure hides detail",
			body: `{"email":"user@example.com"}`,
			setup: func(m *MockWaitlistService) {
				m.EXPECT().Register(gomock.Any(), "user@example.com").Return(apperrors.NewDatabaseError("db", errors.New("pq: password authentication failed")))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"server error"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := NewMockWaitlistService(gomock.NewController(t))
			tc.setup(service)

			w := serve(newTestRouter(t, service, nil), preRegisterRequest(tc.body))

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.JSONEq(t, tc.wantBody, w.Body.String())
		})
	}
}

func TestPreRegisterHandler_RateLimited(t *testing.T) {
	service := NewMockWaitlistService(gomock.NewController(t))
	service.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	rs := newTestRouter(t, service, ratelimit.NewInMemoryRateLimiter(2, 15*time.Minute))

	for i := 0; i < 2; i++ {
		w := serve(rs, preRegisterRequest(`{"email":"user@example.com"}`))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := serve(rs, preRegisterRequest(`{"email":"user@example.com"}`))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestConfirmHandler(t *testing.T) {
	token := strings.Repeat("cd", 32)

	t.Run("renders the thank you page", func(t *testing.T) {
		service := NewMockWaitlistService(gomock.NewController(t))
		service.EXPECT().Confirm(gomock.Any(), token, "user@example.com").Return("user@example.com", nil)

		req := httptest.NewRequest(http.MethodGet, "/confirm?token="+token+"&email=user%40example.com", nil)
		w := serve(newTestRouter(t, service, nil), req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "user@example.com")
	})

	t.Run("unknown token renders a 400 page", func(t *testing.T) {
		service := NewMockWaitlistService(gomock.NewController(t))
		service.EXPECT().Confirm(gomock.Any(), "", "").Return("", invalidTokenError())

		req := httptest.NewRequest(http.MethodGet, "/confirm", nil)
		w := serve(newTestRouter(t, service, nil), req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	})

	t.Run("backend failure renders a generic 500 page", func(t *testing.T) {
		service := NewMockWaitlistService(gomock.NewController(t))
		service.EXPECT().
			Confirm(gomock.Any(), token, "").
			Return("", apperrors.NewDatabaseError("failed", errors.New("relation \"waitlist\" does not exist")))

		req := httptest.NewRequest(http.MethodGet, "/confirm?token="+token, nil)
		w := serve(newTestRouter(t, service, nil), req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "relation")
		assert.NotContains(t, w.Body.String(), "does not exist")
	})
}

func TestListWaitlistHandler(t *testing.T) {
	service := NewMockWaitlistService(gomock.NewController(t))
	service.EXPECT().List(gomock.Any()).Return([]WaitlistEntryResponse{
		{ID: 2, Email: "b@example.com", CreatedAt: "2026-01-02T00:00:00Z", Confirmed: true},
		{ID: 1, Email: "a@example.com", CreatedAt: "2026-01-01T00:00:00Z"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/waitlist", nil)
	w := serve(newTestRouter(t, service, nil), req)

	require.Equal(t, http.StatusOK, w.Code)

	var body []map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "b@example.com", body[0]["email"])
	assert.Equal(t, true, body[0]["confirmed"])
	assert.Equal(t, "2026-01-01T00:00:00Z", body[1]["createdAt"])
	assert.EqualValues(t, 1, body[1]["id"])
}
