package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/yoppeh/nvhttpd/cache"
)

// AdminHandler returns the administrative HTTP surface:
// POST /reload, GET /status and GET /metrics
func (s *Server) AdminHandler() http.Handler {
	h := newHandlers(s)
	r := mux.NewRouter()
	r.HandleFunc("/reload", h.ReloadHandler).Methods(http.MethodPost)
	r.HandleFunc("/status", h.StatusHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func newHandlers(s *Server) *handlers {
	return &handlers{s: s}
}

type handlers struct {
	s *Server
}

type generationStatus struct {
	ID       uint64    `json:"id"`
	Loaded   time.Time `json:"loaded"`
	Entries  int       `json:"entries"`
	Capacity int       `json:"capacity"`
	Bytes    int64     `json:"bytes"`
}

type status struct {
	Name       string            `json:"name"`
	Root       string            `json:"root"`
	TLS        bool              `json:"tls"`
	Generation *generationStatus `json:"generation,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func (h *handlers) status(g *cache.Generation) *status {
	st := &status{
		Name: h.s.c.Server.Name,
		Root: h.s.cache.Root(),
		TLS:  h.s.tls != nil,
	}
	if g != nil {
		st.Generation = &generationStatus{
			ID:       g.ID,
			Loaded:   g.Loaded,
			Entries:  g.Len(),
			Capacity: g.Capacity(),
			Bytes:    g.Size(),
		}
	}
	return st
}

func (h *handlers) ReloadHandler(res http.ResponseWriter, req *http.Request) {
	log.Infof("reload requested by %s", req.RemoteAddr)
	g, err := h.s.Reload()
	if err != nil {
		st := h.status(h.s.cache.Current())
		st.Error = err.Error()
		writeJSON(res, http.StatusInternalServerError, st)
		return
	}
	writeJSON(res, http.StatusOK, h.status(g))
}

func (h *handlers) StatusHandler(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, h.status(h.s.cache.Current()))
}

func writeJSON(res http.ResponseWriter, code int, v interface{}) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(code)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		log.Debugf("failed to write admin response: %s", err)
	}
}
