package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dom/cardclash/internal/domain"
	"github.com/dom/cardclash/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuthHandler_Register(t *testing.T) {
	ts := testutil.NewTestServer(t)

	testutil.NewUserBuilder().WithDisplayName("existinguser").Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedCode   domain.ErrorCode
	}{
		{
			name:           "successful registration",
			request:        map[string]string{"displayName": "newuser", "password": "password123"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing display name",
			request:        map[string]string{"password": "password123"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.CodeInvalidRequest,
		},
		{
			name:           "missing password",
			request:        map[string]string{"displayName": "testuser"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.CodeInvalidRequest,
		},
		{
			name:           "duplicate display name",
			request:        map[string]string{"displayName": "existinguser", "password": "password123"},
			expectedStatus: http.StatusConflict,
			expectedCode:   domain.CodeDisplayNameTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.APIURL("/auth/register"), tt.request)

			if tt.expectedCode != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, string(tt.expectedCode))
				return
			}

			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			var result testutil.AuthResponse
			testutil.AssertJSONResponse(t, resp, &result)
			assert.Equal(t, tt.request["displayName"], result.User.DisplayName)
			assert.NotEmpty(t, result.AccessToken)
			assert.NotEmpty(t, result.RefreshToken)
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, rawPassword := testutil.NewUserBuilder().
		WithDisplayName("loginuser").
		WithPassword("correctpassword").
		Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedCode   domain.ErrorCode
	}{
		{
			name:           "successful login",
			request:        map[string]string{"displayName": user.DisplayName, "password": rawPassword},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			request:        map[string]string{"displayName": user.DisplayName, "password": "wrongpassword"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   domain.CodeUnauthorized,
		},
		{
			name:           "unknown player",
			request:        map[string]string{"displayName": "nonexistent", "password": "anypassword"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   domain.CodeUnauthorized,
		},
		{
			name:           "missing password",
			request:        map[string]string{"displayName": user.DisplayName},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   domain.CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.APIURL("/auth/login"), tt.request)

			if tt.expectedCode != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, string(tt.expectedCode))
				return
			}

			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			var result testutil.AuthResponse
			testutil.AssertJSONResponse(t, resp, &result)
			assert.Equal(t, user.ID.String(), result.User.ID)
		})
	}
}

func TestAuthHandler_MeAndLogout(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, token := testutil.NewUserBuilder().
		WithDisplayName("meuser").
		BuildAndAuthenticate(t, ts)

	for _, bad := range []string{"", "invalid.token.here", "notajwt"} {
		resp := do(t, "GET", ts.APIURL("/auth/me"), nil, bad)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token %q", bad)
	}

	resp := do(t, "GET", ts.APIURL("/auth/me"), nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	}
	testutil.AssertJSONResponse(t, resp, &me)
	assert.Equal(t, user.ID.String(), me.ID)
	assert.Equal(t, "meuser", me.DisplayName)

	resp = do(t, "POST", ts.APIURL("/auth/logout"), nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var sessions int64
	require.NoError(t, ts.DB.DB.Model(&domain.UserSession{}).Where("user_id = ?", user.ID).Count(&sessions).Error)
	assert.Zero(t, sessions)
}

func TestAuthHandler_Refresh(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp := postJSON(t, ts.APIURL("/auth/register"), map[string]string{"displayName": "refresh", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var registered testutil.AuthResponse
	testutil.AssertJSONResponse(t, resp, &registered)

	resp = postJSON(t, ts.APIURL("/auth/refresh"), map[string]string{
		"userId":       registered.User.ID,
		"refreshToken": registered.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed testutil.AuthResponse
	testutil.AssertJSONResponse(t, resp, &refreshed)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	resp = do(t, "GET", ts.APIURL("/auth/me"), nil, refreshed.AccessToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.APIURL("/auth/refresh"), map[string]string{
		"userId":       registered.User.ID,
		"refreshToken": registered.RefreshToken,
	})
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, string(domain.CodeUnauthorized))
}
