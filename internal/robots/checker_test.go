package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policyBody = `User-agent: *
Disallow: /cgi-bin/
Disallow: /index.php

User-agent: admissions-crawler
Disallow: /private/
`

func policyServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/robots.txt", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestAllowedBeforeLoadFailsClosed(t *testing.T) {
	c := NewChecker(nil, "admissions-crawler", nil)
	assert.False(t, c.Allowed("/survey/"))
	assert.False(t, c.Allowed(""))
}

func TestLoadAndAllowed(t *testing.T) {
	ts := policyServer(t, http.StatusOK, policyBody)

	c := NewChecker(ts.Client(), "admissions-crawler", nil)
	require.NoError(t, c.Load(context.Background(), ts.URL+"/survey/"))

	assert.True(t, c.Allowed("/survey/"))
	assert.True(t, c.Allowed(""))
	// Wildcard disallows apply to us too.
	assert.False(t, c.Allowed("/cgi-bin/tool"))
	assert.False(t, c.Allowed("/index.php"))
	// Agent-specific disallows apply even when the wildcard permits.
	assert.False(t, c.Allowed("/private/notes"))
}

func TestLoadUnreachableKeepsDenying(t *testing.T) {
	ts := policyServer(t, http.StatusOK, policyBody)
	ts.Close() // force a connection error

	c := NewChecker(nil, "admissions-crawler", nil)
	require.Error(t, c.Load(context.Background(), ts.URL))
	assert.False(t, c.Allowed("/survey/"))
}

func TestLoadServerErrorDeniesAll(t *testing.T) {
	ts := policyServer(t, http.StatusServiceUnavailable, "")

	c := NewChecker(ts.Client(), "admissions-crawler", nil)
	require.NoError(t, c.Load(context.Background(), ts.URL))
	// 5xx means the policy is unknown; robotstxt treats everything as
	// disallowed in that case.
	assert.False(t, c.Allowed("/survey/"))
	assert.False(t, c.Allowed("/"))
	assert.False(t, c.Allowed(""))
}

func TestLoadNotFoundAllowsAll(t *testing.T) {
	ts := policyServer(t, http.StatusNotFound, "")

	c := NewChecker(ts.Client(), "admissions-crawler", nil)
	require.NoError(t, c.Load(context.Background(), ts.URL))
	assert.True(t, c.Allowed("/survey/"))
}
