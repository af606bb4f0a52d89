package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/crylot/internal/outcome-feed/recent"
	"github.com/radieske/crylot/internal/outcome-feed/ws"
)

const maxLimit = 100

// API expõe o WebSocket e a consulta dos resultados recentes
type API struct {
	Hub    *ws.Hub
	Recent *recent.Store
}

// Router retorna o roteador HTTP do feed
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", a.Hub.HandleWS)
	r.Get("/v1/outcomes", a.latest)
	r.Get("/v1/outcomes/{id}", a.getOutcome)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// latest aceita ?limit= (default 20) e ?player=
func (a *API) latest(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, maxLimit)
	}
	writeJSON(w, http.StatusOK, a.Recent.Latest(limit, r.URL.Query().Get("player")))
}

func (a *API) getOutcome(w http.ResponseWriter, r *http.Request) {
	ev, ok := a.Recent.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
