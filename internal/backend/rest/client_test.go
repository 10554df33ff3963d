package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockeasy/stockeasy/internal/backend"
)

type item struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "anon-key", time.Second)
}

func TestSelectAllSendsKeysAndDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/products", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"1","name":"Harina","quantity":4}]`))
	})

	ctx := backend.WithAccessToken(context.Background(), "user-token")
	var rows []item
	require.NoError(t, client.From("products").SelectAll(ctx, &rows))
	assert.Equal(t, []item{{ID: "1", Name: "Harina", Quantity: 4}}, rows)
}

func TestAnonymousRequestsUseAPIKeyAsBearer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})
	var rows []item
	require.NoError(t, client.From("products").SelectAll(context.Background(), &rows))
	assert.Empty(t, rows)
}

func TestInsertRequestsRepresentationOnlyWithDest(t *testing.T) {
	var prefers []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		prefers = append(prefers, r.Header.Get("Prefer"))
		body, _ := io.ReadAll(r.Body)
		var rows []item
		require.NoError(t, json.Unmarshal(body, &rows))
		rows[0].ID = "new"
		w.WriteHeader(http.StatusCreated)
		if r.Header.Get("Prefer") == "return=representation" {
			_ = json.NewEncoder(w).Encode(rows)
		}
	})

	table := client.From("products")
	var created []item
	require.NoError(t, table.Insert(context.Background(), []item{{Name: "Azúcar", Quantity: 2}}, &created))
	require.Len(t, created, 1)
	assert.Equal(t, "new", created[0].ID)

	require.NoError(t, table.Insert(context.Background(), []item{{Name: "Sal"}}, nil))
	assert.Equal(t, []string{"return=representation", "return=minimal"}, prefers)
}

func TestUpdateCountsAffectedRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.abc", r.URL.Query().Get("id"))
		if r.URL.Query().Get("id") == "eq.abc" {
			_, _ = w.Write([]byte(`[{"id":"abc","name":"x","quantity":1}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	n, err := client.From("products").Update(context.Background(), item{Name: "x", Quantity: 1}, backend.Match{"id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteWithoutMatchIsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})
	_, err := client.From("products").Delete(context.Background(), nil)
	assert.ErrorIs(t, err, errMatchRequired)
}

func TestPostgrestErrorIsDecoded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","message":"relation \"public.nope\" does not exist"}`))
	})
	var rows []item
	err := client.From("nope").SelectAll(context.Background(), &rows)
	var be *backend.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusNotFound, be.Status)
	assert.Equal(t, "42P01", be.Code)
	assert.Contains(t, be.Message, "does not exist")
}

const userID = "8f0c2c4e-6b1a-4d0e-9a57-3c1f2b7d9e10"

type tokenGrant struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

func TestSignInWithPassword(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		var grant tokenGrant
		require.NoError(t, json.NewDecoder(r.Body).Decode(&grant))
		if grant.Password != "secreto123" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","expires_in":3600,"user":{"id":"` + userID + `","email":"ana@example.com"}}`))
	})
	auth := client.Auth()

	sess, err := auth.SignInWithPassword(context.Background(), "ana@example.com", "secreto123")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.AccessToken)
	assert.Equal(t, "ref", sess.RefreshToken)
	assert.Equal(t, userID, sess.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)

	_, err = auth.SignInWithPassword(context.Background(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, backend.ErrInvalidCredentials)
}

func TestRefreshExchangesToken(t *testing.T) {
	expires := time.Now().Add(time.Hour).Unix()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		var grant tokenGrant
		require.NoError(t, json.NewDecoder(r.Body).Decode(&grant))
		if grant.RefreshToken != "ref" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token: Already Used"}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"access_token":"tok2","refresh_token":"ref2","expires_at":%d,"user":{"id":"%s","email":"ana@example.com"}}`, expires, userID)
	})
	auth := client.Auth()

	sess, err := auth.Refresh(context.Background(), "ref")
	require.NoError(t, err)
	assert.Equal(t, "tok2", sess.AccessToken)
	assert.Equal(t, "ref2", sess.RefreshToken)
	assert.Equal(t, expires, sess.ExpiresAt.Unix())

	_, err = auth.Refresh(context.Background(), "ref")
	require.NoError(t, err)
	_, err = auth.Refresh(context.Background(), "spent")
	assert.ErrorIs(t, err, backend.ErrSessionExpired)
	_, err = auth.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, backend.ErrSessionExpired)
}

func TestUpstreamFailureKeepsStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	_, err := client.Auth().Refresh(context.Background(), "ref")
	var be *backend.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusBadGateway, be.Status)
	assert.Equal(t, "upstream down", be.Message)
	assert.NotErrorIs(t, err, backend.ErrSessionExpired)
}

func TestCanceledContextStopsRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rows []item
	err := client.From("products").SelectAll(ctx, &rows)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetUserTreatsUnauthorizedAsSignedOut(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			_, _ = w.Write([]byte(`{"id":"` + userID + `","email":"ana@example.com"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"invalid JWT","code":401}`))
	})
	auth := client.Auth()

	user, err := auth.GetUser(context.Background(), "good")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ana@example.com", user.Email)

	user, err = auth.GetUser(context.Background(), "expired")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = auth.GetUser(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSignOut(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, client.Auth().SignOut(context.Background(), "tok"))
	require.NoError(t, client.Auth().SignOut(context.Background(), ""))
	assert.Equal(t, 1, calls)
}
