package transport

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dyluth/mural/internal/document"
)

// Server exposes one document for replication: peers bootstrap from a
// snapshot and then hold a websocket sync session open. The server's own
// store is the merge point for every connected peer.
type Server struct {
	name     string
	store    *document.AutomergeStore
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a sync server for one named document.
func NewServer(name string, store *document.AutomergeStore, log *slog.Logger) *Server {
	return &Server{
		name:  name,
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the HTTP routes: a snapshot endpoint for bootstrap and a
// websocket endpoint for continuous sync.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, w, req)
			s.log.Info("handled", "method", req.Method, "url", req.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/documents/{name}/snapshot").HandlerFunc(s.getSnapshot)
	r.Methods(http.MethodGet).Path("/documents/{name}/sync").HandlerFunc(s.syncPeer)
	return r
}

func (s *Server) getSnapshot(w http.ResponseWriter, req *http.Request) {
	if mux.Vars(req)["name"] != s.name {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Add("Content-Type", "application/octet-stream")
	if _, err := w.Write(s.store.Save()); err != nil {
		s.log.Error("failed to write snapshot", "err", err)
	}
}

func (s *Server) syncPeer(w http.ResponseWriter, req *http.Request) {
	if mux.Vars(req)["name"] != s.name {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.log.Error("failed to upgrade sync connection", "err", err)
		return
	}
	defer conn.Close()

	s.log.Info("peer connected", "document", s.name, "remote", req.RemoteAddr)
	if err := syncConn(req.Context(), conn, s.store, s.log); err != nil {
		s.log.Warn("sync session ended", "remote", req.RemoteAddr, "err", err)
	}
}
