package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"menuca.ca/restotool/internal/bridge"
	"menuca.ca/restotool/internal/model"
	"menuca.ca/restotool/internal/printer"
)

var errBadArgs = errors.New("bad arguments")

type session struct {
	srv  *Server
	conn *websocket.Conn
	log  *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	handles map[string]*bridge.Call
	locked  map[string]*bridge.Call
}

func newSession(s *Server, conn *websocket.Conn) *session {
	return &session{
		srv:     s,
		conn:    conn,
		log:     s.Log.With(zap.String("remote", conn.RemoteAddr().String())),
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		handles: map[string]*bridge.Call{},
		locked:  map[string]*bridge.Call{},
	}
}

// trySend queues v for the page, dropping it if the page isn't keeping up
func (s *session) trySend(v any) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- marshal(v):
		return true
	case <-s.done:
		return false
	default:
		s.log.Warn("Dropping message for slow page")
		return false
	}
}

func (s *session) reply(v any) {
	select {
	case s.send <- marshal(v):
	case <-s.done:
	}
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Info("Write failed", zap.Error(err))
				s.conn.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req model.Request
		if err := s.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				s.reply(model.Response{Error: "malformed request"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("Read error", zap.Error(err))
			}
			return
		}
		res, c := s.dispatch(ctx, req)
		s.reply(res)
		if c != nil {
			c.OnComplete(func(c *bridge.Call) {
				s.reply(resolveEvent(c))
			})
		}
	}
}

// close releases everything the page left behind
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()

		s.mu.Lock()
		defer s.mu.Unlock()
		for id, c := range s.locked {
			c.Unlock()
			delete(s.locked, id)
		}
		for id := range s.handles {
			s.srv.API.Release(id)
			delete(s.handles, id)
		}
	})
}

// track remembers c as belonging to this page
func (s *session) track(c *bridge.Call) (any, string, error) {
	s.mu.Lock()
	s.handles[c.ID()] = c
	s.mu.Unlock()
	return c, c.ID(), nil
}

func (s *session) handle(id string) (*bridge.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.handles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, id)
	}
	return c, nil
}

func errorText(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	return err.Error(), string(printer.Classify(err))
}

func resolveEvent(c *bridge.Call) model.ResolveEvent {
	msg, kind := errorText(c.Result().Err)
	return model.ResolveEvent{
		Type:   model.EventResolve,
		Handle: c.ID(),
		Value:  json.RawMessage(c.Value()),
		Error:  msg,
		Kind:   kind,
	}
}

func status(c *bridge.Call) model.HandleStatus {
	st := model.HandleStatus{Handle: c.ID(), Complete: c.Complete()}
	if st.Complete {
		st.Value = json.RawMessage(c.Value())
		st.Error, st.Kind = errorText(c.Result().Err)
	}
	return st
}
