package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

// maxMessageSize bounds inbound messages; their content is ignored.
const maxMessageSize = 512

// handleWebSocket answers every inbound message with the current value of
// the dirty flag, "true" or "false". The session has no other state and
// ends on the first read or write failure.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.sessions, cancel)
	defer stop()

	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	logger := s.logger.WithComponent("ws").With("remote", r.RemoteAddr)
	logger.Debug(ctx, "Session opened")

	limiter := s.newLimiter()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if !isNormalClose(err) && ctx.Err() == nil {
				logger.Debug(ctx, "Session read failed", "error", err.Error())
			}
			break
		}

		if err := limiter.Wait(ctx); err != nil {
			break
		}

		if err := conn.Write(ctx, websocket.MessageText, []byte(s.flag.String())); err != nil {
			logger.Debug(ctx, "Session write failed", "error", err.Error())
			break
		}
		s.metrics.MessageAnswered()
	}

	if s.sessions.Err() != nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	logger.Debug(ctx, "Session closed")
}

func (s *Server) newLimiter() *rate.Limiter {
	mps := s.cfg.Development.MessagesPerSecond
	if mps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	burst := int(mps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(mps), burst)
}

// originPatterns lists the host patterns accepted for cross-origin upgrades
// in addition to same-origin requests.
func (s *Server) originPatterns() []string {
	patterns := []string{"localhost:*", "127.0.0.1:*"}
	for _, origin := range s.cfg.Server.AllowedOrigins {
		patterns = append(patterns, hostOf(origin))
	}
	return patterns
}

func hostOf(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}
