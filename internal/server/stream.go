package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aprilgo/internal/speech"
	"aprilgo/pkg/april"
)

type tokenJSON struct {
	Token   string  `json:"token"`
	Logprob float32 `json:"logprob"`
	Flags   string  `json:"flags,omitempty"`
	TimeMS  uint64  `json:"time_ms"`
}

func toTokensJSON(tokens april.Tokens) []tokenJSON {
	out := make([]tokenJSON, len(tokens))
	for i, t := range tokens {
		out[i] = tokenJSON{Token: t.Text, Logprob: t.Logprob, TimeMS: t.TimeMS}
		if t.Flags != 0 {
			out[i].Flags = t.Flags.String()
		}
	}
	return out
}

type readyMessage struct {
	Type       string `json:"type"`
	StreamID   string `json:"stream_id"`
	SessionID  string `json:"session_id"`
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
	Mode       string `json:"mode"`
}

type resultMessage struct {
	Type   string      `json:"type"`
	Result string      `json:"result"`
	Code   uint32      `json:"code"`
	Text   string      `json:"text"`
	Tokens []tokenJSON `json:"tokens"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// controlMessage - текстовый кадр от клиента.
type controlMessage struct {
	Type string `json:"type"`
}

// streamConn - одно websocket-соединение и его сессия.
type streamConn struct {
	id    string
	ws    *websocket.Conn
	out   chan any
	wrote chan struct{} // закрывается, когда писатель завершился
	log   *zap.Logger
}

// send ставит сообщение в очередь писателя. Если must=false и очередь полна,
// сообщение отбрасывается. Возвращает false, если сообщение не поставлено.
func (c *streamConn) send(msg any, must bool) bool {
	if must {
		select {
		case c.out <- msg:
			return true
		case <-c.wrote:
			return false
		}
	}
	select {
	case c.out <- msg:
		return true
	case <-c.wrote:
		return false
	default:
		return false
	}
}

// writeLoop - единственный писатель в соединение.
func (c *streamConn) writeLoop() {
	defer close(c.wrote)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.out:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				// Разрываем соединение, чтобы читатель тоже завершился.
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(writeWait)); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rec := s.source.Current()
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "model is not loaded")
		return
	}

	var mode *april.ConfigFlags
	if q := r.URL.Query().Get("mode"); q != "" {
		m, err := april.ParseMode(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, ok := rec.(*speech.AprilRecognizer); !ok {
			writeError(w, http.StatusBadRequest, "recognizer does not support mode selection")
			return
		}
		mode = &m
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	c := &streamConn{
		id:    uuid.NewString(),
		ws:    ws,
		out:   make(chan any, s.cfg.Results),
		wrote: make(chan struct{}),
	}
	c.log = s.log.With(zap.String("stream", c.id))

	s.track(c)
	defer s.untrack(c)

	stream, err := s.openStream(rec, mode, c)
	if err != nil {
		c.log.Error("open session", zap.Error(err))
		_ = ws.WriteJSON(errorMessage{Type: "error", Error: err.Error()})
		return
	}

	go c.writeLoop()

	c.send(readyMessage{
		Type:       "ready",
		StreamID:   c.id,
		SessionID:  stream.ID(),
		Model:      rec.Name(),
		SampleRate: rec.SampleRate(),
		Mode:       stream.Mode().String(),
	}, true)
	c.log.Info("stream opened", zap.String("session", stream.ID()), zap.Stringer("mode", stream.Mode()))

	s.readLoop(c, stream)

	// После Close обработчик сессии больше не вызывается, и канал можно закрыть.
	if err := stream.Close(); err != nil {
		c.log.Warn("close session", zap.Error(err))
	}
	close(c.out)
	<-c.wrote
	c.log.Info("stream closed")
}

// openStream открывает сессию; mode == nil - режим распознавателя по умолчанию.
func (s *Server) openStream(rec speech.Recognizer, mode *april.ConfigFlags, c *streamConn) (*speech.Stream, error) {
	handler := func(res speech.Result) {
		// Вызывается из потока движка: сеть здесь не трогаем.
		msg := resultMessage{
			Type:   "result",
			Result: res.Type.String(),
			Code:   res.Type.Code(),
			Text:   res.Text(),
			Tokens: toTokensJSON(res.Tokens),
		}
		final := res.Type == april.ResultRecognitionFinal
		if !c.send(msg, final) && !final {
			c.log.Debug("result dropped", zap.Stringer("result", res.Type))
		}
	}

	if ar, ok := rec.(*speech.AprilRecognizer); ok && mode != nil {
		return ar.StreamMode(*mode, handler)
	}
	return rec.Stream(handler)
}

func (s *Server) readLoop(c *streamConn, stream *speech.Stream) {
	c.ws.SetReadLimit(s.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		switch kind {
		case websocket.BinaryMessage:
			if err := stream.FeedBytes(payload); err != nil {
				c.send(errorMessage{Type: "error", Error: err.Error()}, true)
			}

		case websocket.TextMessage:
			var ctl controlMessage
			if err := json.Unmarshal(payload, &ctl); err != nil {
				c.send(errorMessage{Type: "error", Error: "invalid control message: " + err.Error()}, true)
				continue
			}
			switch ctl.Type {
			case "flush":
				if err := stream.Flush(); err != nil {
					c.send(errorMessage{Type: "error", Error: err.Error()}, true)
				}
			case "close":
				if err := stream.Flush(); err != nil {
					c.send(errorMessage{Type: "error", Error: err.Error()}, true)
				}
				return
			default:
				c.send(errorMessage{Type: "error", Error: "unknown control message " + ctl.Type}, true)
			}
		}
	}
}
