package verifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace-dev/notify-push/internal/apperrors"
)

func TestVerifier_SuccessReturnsUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.FormValue("username"))
		assert.Equal(t, "hunter2", r.FormValue("password"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"alice"}`))
	}))
	defer srv.Close()

	v := New(srv.URL)
	id, err := v.Verify(context.Background(), "alice", "hunter2", []string{"10.0.0.1"})
	require.NoError(t, err)
	assert.EqualValues(t, "alice", id)
}

func TestVerifier_UnauthorizedMapsToInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := New(srv.URL)
	_, err := v.Verify(context.Background(), "alice", "wrong", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestVerifier_EmptyUserIDMapsToInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":""}`))
	}))
	defer srv.Close()

	v := New(srv.URL)
	_, err := v.Verify(context.Background(), "alice", "hunter2", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestVerifier_ServerErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := New(srv.URL)
	_, err := v.Verify(context.Background(), "alice", "hunter2", nil)
	assert.Error(t, err)
}

func TestVerifier_ContextCancellationAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := New(srv.URL)
	_, err := v.Verify(ctx, "alice", "hunter2", nil)
	assert.Error(t, err)
}
