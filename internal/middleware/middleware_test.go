package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/planfit/planfit/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorsMiddleware(t *testing.T) {
	testCases := []struct {
		name           string
		origin         string
		userAgent      string
		expectCors     bool
		expectedStatus int
	}{
		{
			name:           "AllowedOrigin",
			origin:         "https://app.planfit.fit",
			expectCors:     true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "NotAllowedOrigin",
			origin:         "https://www.notallowed.com",
			expectCors:     false,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "AllowedAppUserAgent",
			userAgent:      "Planfit/1.0",
			expectCors:     true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "NotAllowedUserAgent",
			userAgent:      "UnknownAgent/1.0",
			expectCors:     false,
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req, err := http.NewRequest("GET", "/dashboard", nil)
			require.NoError(t, err)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("User-Agent", tc.userAgent)

			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			handler := Cors()(nextHandler)

			handler.ServeHTTP(rr, req)

			if tc.expectCors {
				assert.Equal(t, tc.origin, rr.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Equal(t, tc.expectedStatus, rr.Code, "Unexpected status code")
			}
		})
	}
}

type fakeUserResolver struct {
	userID string
	err    error
}

func (f *fakeUserResolver) ActiveUserID(_ context.Context, token string) (string, error) {
	if token == "" {
		return auth.GuestUserID, nil
	}
	if f.err != nil {
		return "", f.err
	}
	return f.userID, nil
}

func TestAuthMiddleware(t *testing.T) {
	testCases := []struct {
		name           string
		token          string
		resolver       *fakeUserResolver
		path           string
		expectedStatus int
		expectedUserID string
	}{
		{
			name:           "ValidToken",
			token:          "valid",
			resolver:       &fakeUserResolver{userID: "user1"},
			path:           "/dashboard",
			expectedStatus: http.StatusOK,
			expectedUserID: "user1",
		},
		{
			name:           "NoTokenRunsAsGuest",
			resolver:       &fakeUserResolver{},
			path:           "/dashboard",
			expectedStatus: http.StatusOK,
			expectedUserID: auth.GuestUserID,
		},
		{
			name:           "InvalidToken",
			token:          "expired",
			resolver:       &fakeUserResolver{err: auth.ErrNotLoggedIn},
			path:           "/dashboard",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "SessionCheckError",
			token:          "whatever",
			resolver:       &fakeUserResolver{err: errors.New("redis down")},
			path:           "/dashboard",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "AllowedPathSkipsCheck",
			token:          "whatever",
			resolver:       &fakeUserResolver{err: errors.New("redis down")},
			path:           "/version",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req, err := http.NewRequest("GET", tc.path, nil)
			require.NoError(t, err)
			if tc.token != "" {
				req.Header.Set("X-PLANFIT-TOKEN", tc.token)
			}

			var gotUserID string
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID = auth.UserIDFromContext(r.Context())
			})

			authMiddleware := NewAuthMiddlewareHandler(tc.resolver)
			authMiddleware.AuthCheck()(nextHandler).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedUserID != "" {
				assert.Equal(t, tc.expectedUserID, gotUserID)
			}
		})
	}
}
