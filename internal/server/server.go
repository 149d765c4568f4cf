// Package server отдаёт распознавание по HTTP и websocket.
//
// Маршруты:
//
//	GET  /healthz        состояние сервера
//	GET  /v1/model       метаданные текущей модели
//	POST /v1/transcribe  распознать WAV или сырой PCM16 LE целиком
//	GET  /v1/stream      websocket: бинарные кадры PCM16 LE, JSON-результаты
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aprilgo/internal/audio/wav"
	"aprilgo/internal/config"
	"aprilgo/internal/speech"
	"aprilgo/pkg/april"
)

const (
	pingPeriod     = 25 * time.Second
	writeWait      = 10 * time.Second
	maxUploadBytes = 100 << 20
)

// RecognizerSource отдаёт текущий распознаватель; реализуется speech.Factory.
type RecognizerSource interface {
	Current() speech.Recognizer
}

// Server - HTTP сервер распознавания.
type Server struct {
	source   RecognizerSource
	cfg      config.ServerConfig
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	streams map[*streamConn]struct{}
}

// New создаёт сервер. Режим сессий /v1/stream берётся из распознавателя,
// клиент может переопределить его параметром ?mode=.
func New(source RecognizerSource, cfg config.ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		source: source,
		cfg:    cfg,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		streams: make(map[*streamConn]struct{}),
	}
}

// Handler возвращает маршруты сервера.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.logRequests)
		r.Get("/healthz", s.handleHealth)
		r.Get("/v1/model", s.handleModel)
		r.Post("/v1/transcribe", s.handleTranscribe)
	})
	r.Get("/v1/stream", s.handleStream)
	return r
}

// ListenAndServe слушает cfg.Addr до отмены ctx, затем закрывает потоки
// и останавливает сервер.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpServer.RegisterOnShutdown(s.closeStreams)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server started", zap.String("addr", s.cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// ActiveStreams возвращает число открытых websocket-потоков.
func (s *Server) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func (s *Server) track(c *streamConn) {
	s.mu.Lock()
	s.streams[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *streamConn) {
	s.mu.Lock()
	delete(s.streams, c)
	s.mu.Unlock()
}

// closeStreams рвёт все websocket-соединения; их сессии закрываются в обработчиках.
func (s *Server) closeStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.streams {
		_ = c.ws.Close()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"loaded":  s.source.Current() != nil,
		"streams": s.ActiveStreams(),
		"ts_ms":   time.Now().UnixMilli(),
	})
}

type modelResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	SampleRate  int    `json:"sample_rate"`
	Path        string `json:"path,omitempty"`
}

// modelOwner реализуется распознавателями April.
type modelOwner interface {
	Model() *april.Model
}

func (s *Server) handleModel(w http.ResponseWriter, _ *http.Request) {
	rec := s.source.Current()
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "model is not loaded")
		return
	}

	resp := modelResponse{Name: rec.Name(), SampleRate: rec.SampleRate()}
	if owner, ok := rec.(modelOwner); ok {
		m := owner.Model()
		info, err := m.Info()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Name = info.Name
		resp.Description = info.Description
		resp.Language = info.Language
		resp.SampleRate = info.SampleRate
		resp.Path = m.Path()
	}
	writeJSON(w, http.StatusOK, resp)
}

type transcribeResponse struct {
	Text     string        `json:"text"`
	Segments []segmentJSON `json:"segments"`
	Partial  string        `json:"partial,omitempty"`
	Seconds  float64       `json:"seconds"`
	TookMS   int64         `json:"took_ms"`
}

type segmentJSON struct {
	Text   string      `json:"text"`
	Tokens []tokenJSON `json:"tokens"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	rec := s.source.Current()
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "model is not loaded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	var clip wav.Clip
	if bytes.HasPrefix(body, []byte("RIFF")) {
		clip, err = wav.Decode(body)
	} else {
		clip, err = wav.DecodePCM16LE(body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if clip.SampleRate != 0 && clip.SampleRate != rec.SampleRate() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("sample rate %d does not match the model (%d)", clip.SampleRate, rec.SampleRate()))
		return
	}

	start := time.Now()
	tr, err := rec.Transcribe(r.Context(), clip.Samples)
	switch {
	case errors.Is(err, april.ErrEmptyAudio):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := transcribeResponse{
		Text:     tr.Text(),
		Segments: make([]segmentJSON, 0, len(tr.Segments)),
		Partial:  tr.Partial,
		Seconds:  clip.Seconds(rec.SampleRate()),
		TookMS:   time.Since(start).Milliseconds(),
	}
	for _, seg := range tr.Segments {
		resp.Segments = append(resp.Segments, segmentJSON{Text: seg.Text, Tokens: toTokensJSON(seg.Tokens)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
