// Package server binds the page call surface to a WebSocket. Each message is
// a method call; calls that run on the bridge answer with a handle that is
// resolved later by a pushed event.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"menuca.ca/restotool/internal/api"
	"menuca.ca/restotool/internal/link"
	"menuca.ca/restotool/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 20
	sendBuffer     = 64
)

type Server struct {
	API *api.Interface
	Log *zap.Logger
	// directory served at / when set
	StaticDir string
	// origins allowed to open the socket, any when empty
	AllowedOrigins []string

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func New(a *api.Interface, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		API:      a,
		Log:      log,
		sessions: map[*session]struct{}{},
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Handler serves the socket at path, plus the static directory if set
func (s *Server) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.StaticDir)))
	}
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Info("Couldn't upgrade connection", zap.Error(err))
		return
	}

	sess := newSession(s, conn)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.Log.Info("Page connected", zap.String("remote", r.RemoteAddr))

	go sess.writeLoop()
	sess.readLoop(r.Context())

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	sess.close()
	s.Log.Info("Page disconnected", zap.String("remote", r.RemoteAddr))
}

// BroadcastLinkState tells every page about a link state change. It never
// blocks, so it can be used as a link.Manager state listener.
func (s *Server) BroadcastLinkState(state link.State) {
	ev := model.LinkStateEvent{Type: model.EventLinkState, State: state.String()}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.trySend(ev)
	}
}

// Sessions is the number of connected pages
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func marshal(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		out, _ = json.Marshal(model.Response{Error: err.Error()})
	}
	return out
}
