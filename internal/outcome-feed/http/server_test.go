package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/crylot/internal/outcome-feed/recent"
	"github.com/radieske/crylot/internal/outcome-feed/ws"
	"github.com/radieske/crylot/pkg/contracts/events"
)

func newAPI(t *testing.T) *API {
	t.Helper()
	st, err := recent.New(50)
	require.NoError(t, err)
	for i := 1; i <= 30; i++ {
		st.Record(events.BetResolved{RequestID: strconv.Itoa(i), Player: "0xc3", Rolled: uint64(i)})
	}
	return &API{Hub: ws.NewHub(nil), Recent: st}
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLatestOutcomes(t *testing.T) {
	h := newAPI(t).Router()

	rec := get(h, "/v1/outcomes")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []events.BetResolved
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 20)
	assert.Equal(t, "30", out[0].RequestID)

	rec = get(h, "/v1/outcomes?limit=5&player=0xC3")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 5)

	assert.Equal(t, http.StatusBadRequest, get(h, "/v1/outcomes?limit=abc").Code)
}

func TestGetOutcome(t *testing.T) {
	h := newAPI(t).Router()

	rec := get(h, "/v1/outcomes/7")
	require.Equal(t, http.StatusOK, rec.Code)
	var ev events.BetResolved
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.Equal(t, uint64(7), ev.Rolled)

	assert.Equal(t, http.StatusNotFound, get(h, "/v1/outcomes/999").Code)
}
