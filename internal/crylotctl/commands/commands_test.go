package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/crylot/internal/shared/callerauth"
)

const admin = "0x00000000000000000000000000000000000000a1"

type seen struct {
	method, path, caller string
	body                 map[string]any
}

func fakeAPI(t *testing.T, status int, reply string) (*httptest.Server, *[]seen) {
	t.Helper()
	var got []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := seen{method: r.Method, path: r.URL.Path, caller: r.Header.Get("X-Caller-Address")}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &s.body))
		}
		got = append(got, s)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestBetSendsWeiAndCaller(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusAccepted, `{"request_id":"1","status":"PENDING_RANDOMNESS"}`)

	out, err := run(t, srv, "--from", admin, "bet", "15", "0.005")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "PENDING_RANDOMNESS"`)

	require.Len(t, *got, 1)
	req := (*got)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v1/bets", req.path)
	assert.Equal(t, admin, req.caller)
	assert.Equal(t, "5000000000000000", req.body["value_wei"])
	assert.Equal(t, float64(15), req.body["guess"])
}

func TestSetBoundsAcceptsWeiSuffix(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, `{}`)

	_, err := run(t, srv, "--from", admin, "bounds", "set-max", "20000000000000000wei")
	require.NoError(t, err)
	require.Len(t, *got, 1)
	assert.Equal(t, http.MethodPut, (*got)[0].method)
	assert.Equal(t, "/v1/bounds/max", (*got)[0].path)
	assert.Equal(t, "20000000000000000", (*got)[0].body["value_wei"])
}

func TestAPIErrorIsReturned(t *testing.T) {
	srv, _ := fakeAPI(t, http.StatusForbidden, `{"error":"You are not an admin","kind":"NotAuthorized"}`)

	_, err := run(t, srv, "--from", admin, "bounds", "set-min", "0.002")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "You are not an admin")
	assert.Contains(t, err.Error(), "403")
}

func TestWriteCommandsRequireFrom(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, `{}`)

	_, err := run(t, srv, "fund", "1")
	assert.ErrorContains(t, err, "--from or --key")
	_, err = run(t, srv, "--from", admin, "bet", "15", "abc")
	assert.Error(t, err)
	assert.Empty(t, *got)
}

func TestReadCommands(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, `{"wei":"0","eth":"0"}`)

	for _, args := range [][]string{
		{"bounds"},
		{"balance"},
		{"bet", "status", "42"},
		{"admin", "check", admin},
	} {
		_, err := run(t, srv, args...)
		require.NoError(t, err, args)
	}
	paths := make([]string, 0, len(*got))
	for _, s := range *got {
		paths = append(paths, s.path)
	}
	assert.Equal(t, []string{"/v1/bounds", "/v1/balance", "/v1/bets/42", "/v1/admins/" + admin}, paths)
}

func TestAdminAndRetryRoutes(t *testing.T) {
	srv, got := fakeAPI(t, http.StatusOK, `{}`)
	other := "0x00000000000000000000000000000000000000b2"

	for _, args := range [][]string{
		{"admin", "grant", other},
		{"admin", "revoke", other},
		{"retry-payout", "9"},
	} {
		_, err := run(t, srv, append([]string{"--from", admin}, args...)...)
		require.NoError(t, err, args)
	}
	require.Len(t, *got, 3)
	assert.Equal(t, other, (*got)[0].body["address"])
	assert.Equal(t, http.MethodDelete, (*got)[1].method)
	assert.Equal(t, "/v1/payouts/9/retry", (*got)[2].path)
}

func TestKeySignsRequests(t *testing.T) {
	var signer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		addr, err := callerauth.Verify(r, raw, time.Now(), callerauth.DefaultMaxSkew)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		signer = addr.Hex()
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	_, err := run(t, srv, "--key", "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63", "fund", "1")
	require.NoError(t, err)
	assert.NotEmpty(t, signer)

	_, err = run(t, srv, "--key", "zz", "fund", "1")
	assert.Error(t, err)
}
