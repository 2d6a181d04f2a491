package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/client"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonHandler(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func TestAPIClient_LoginSendsCredentials(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, client.DefaultLoginPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		jsonHandler(http.StatusOK, client.LoginResponse{
			Success: true,
			Message: "login successful",
			Token:   "tok",
			UserID:  "u1",
			Roles:   []string{"User"},
		})(w, r)
	}))
	defer srv.Close()

	api := client.NewAPIClient(srv.URL + "/")
	res, err := api.Login(context.Background(), "alice", "secret-pass")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"username": "alice", "password": "secret-pass"}, got)
	assert.True(t, res.Success)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, []string{"User"}, res.Roles)
}

func TestAPIClient_MeSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		jsonHandler(http.StatusOK, client.MeResponse{Success: true, UserID: "u1", UserName: "alice"})(w, r)
	}))
	defer srv.Close()

	api := client.NewAPIClient(srv.URL)
	api.SetAuthorization("tok-123")
	assert.Equal(t, "tok-123", api.Authorization())

	me, err := api.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.UserName)
}

func TestAPIClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		wantKind token.Kind
		wantMsg  string
	}{
		{
			name:     "bad credentials",
			status:   http.StatusUnauthorized,
			body:     map[string]any{"success": false, "message": "invalid username or password", "code": "CREDENTIAL_INVALID"},
			wantKind: token.KindCredentialInvalid,
			wantMsg:  "invalid username or password",
		},
		{
			name:     "validation",
			status:   http.StatusBadRequest,
			body:     map[string]any{"success": false, "message": "password: too short.", "code": "VALIDATION_FAILED", "fields": map[string]any{"password": "too short"}},
			wantKind: token.KindValidationFailed,
			wantMsg:  "password: too short.",
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     map[string]any{"success": false, "message": "insufficient role", "code": "FORBIDDEN"},
			wantKind: token.KindForbidden,
		},
		{
			name:     "unknown code",
			status:   http.StatusConflict,
			body:     map[string]any{"success": false, "message": "registration is not enabled", "code": "REGISTRATION_DISABLED"},
			wantKind: "REGISTRATION_DISABLED",
			wantMsg:  "registration is not enabled",
		},
		{
			name:     "not json",
			status:   http.StatusBadGateway,
			body:     "<html>",
			wantKind: token.KindNetworkFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var handler http.HandlerFunc = jsonHandler(tt.status, tt.body)
			if s, ok := tt.body.(string); ok {
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte(s))
				}
			}
			srv := httptest.NewServer(handler)
			defer srv.Close()

			_, err := client.NewAPIClient(srv.URL).Login(context.Background(), "a", "b")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, token.KindOf(err))

			var rich *goerrors.Error
			require.True(t, goerrors.As(err, &rich))
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, rich.Message)
			}
			if tt.wantKind == token.KindValidationFailed {
				assert.Equal(t, map[string]any{"password": "too short"}, rich.Metadata["fields"])
			}
		})
	}
}

func TestAPIClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := client.NewAPIClient(url).Login(context.Background(), "a", "b")
	assert.Equal(t, token.KindNetworkFailure, token.KindOf(err))
}

func TestAPIClient_CustomPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/signup", r.URL.Path)
		jsonHandler(http.StatusOK, client.LoginResponse{Success: true, Token: "tok"})(w, r)
	}))
	defer srv.Close()

	api := client.NewAPIClient(srv.URL, client.WithPaths("", "/v2/signup", ""), client.WithHTTPClient(srv.Client()))
	res, err := api.Register(context.Background(), client.RegisterRequest{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
}
