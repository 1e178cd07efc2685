package api

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJarClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, c *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := c.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getWith(t *testing.T, c *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAuth_LoginFlow(t *testing.T) {
	env := newTestEnv(t, envOptions{password: "secret"})
	c := newJarClient(t)
	base := env.srv.URL

	assert.Equal(t, http.StatusUnauthorized, getWith(t, c, base+"/api/session").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, getWith(t, c, base+"/api/stats").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, getWith(t, c, base+"/api/log/latest").StatusCode)

	resp := postJSON(t, c, base+"/api/login", `{"user":" Mayza ","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "cilaos_session" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Expires.IsZero(), "browser-session cookie without remember-me")

	resp = getWith(t, c, base+"/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var s SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, "mayza", s.User)
	assert.False(t, s.Remember)

	resp = getWith(t, c, base+"/api/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "mayza", stats.Admin)

	resp = postJSON(t, c, base+"/api/logout", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, getWith(t, c, base+"/api/session").StatusCode)
	assert.Empty(t, env.st.vals, "session removed from the store")
}

func TestAuth_RememberMe(t *testing.T) {
	env := newTestEnv(t, envOptions{password: "secret"})
	c := newJarClient(t)

	resp := postJSON(t, c, env.srv.URL+"/api/login", `{"user":"mayza","password":"secret","remember":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Cookies())
	assert.False(t, resp.Cookies()[0].Expires.IsZero())

	var s SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.True(t, s.Remember)
}

func TestAuth_LoginRejected(t *testing.T) {
	env := newTestEnv(t, envOptions{password: "secret"})
	c := newJarClient(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"wrong password", `{"user":"mayza","password":"Secret"}`, http.StatusUnauthorized},
		{"wrong user", `{"user":"admin","password":"secret"}`, http.StatusUnauthorized},
		{"malformed", `{"user":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, c, env.srv.URL+"/api/login", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Empty(t, resp.Cookies())
		})
	}
	assert.Empty(t, env.st.vals)
}

func TestAuth_LogoutWithoutSession(t *testing.T) {
	env := newTestEnv(t, envOptions{password: "secret"})
	resp := postJSON(t, http.DefaultClient, env.srv.URL+"/api/logout", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
