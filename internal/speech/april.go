package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"aprilgo/pkg/april"
)

// DefaultChunk - длительность куска аудио для Transcribe по умолчанию.
const DefaultChunk = 100 * time.Millisecond

// Options настройки AprilRecognizer.
type Options struct {
	// Mode - флаги для живых сессий (Stream). Transcribe всегда синхронный.
	Mode april.ConfigFlags
	// Chunk - сколько аудио подавать в сессию за один вызов.
	Chunk  time.Duration
	Logger *zap.Logger
}

// AprilRecognizer реализует Recognizer через April.
type AprilRecognizer struct {
	model *april.Model
	name  string
	mode  april.ConfigFlags
	chunk time.Duration
	log   *zap.Logger
}

// NewApril загружает модель из файла.
func NewApril(modelPath string, opts Options) (*AprilRecognizer, error) {
	model, err := april.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("загрузка модели April: %w", err)
	}
	return newApril(model, opts), nil
}

func newApril(model *april.Model, opts Options) *AprilRecognizer {
	if opts.Chunk <= 0 {
		opts.Chunk = DefaultChunk
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	name := "april"
	if n, err := model.Name(); err == nil && n != "" {
		name = "april/" + n
	} else if err != nil {
		opts.Logger.Warn("model name unavailable", zap.Error(err))
	}

	return &AprilRecognizer{
		model: model,
		name:  name,
		mode:  opts.Mode,
		chunk: opts.Chunk,
		log:   opts.Logger.With(zap.String("model", model.Path())),
	}
}

// Name возвращает название движка и модели.
func (r *AprilRecognizer) Name() string {
	return r.name
}

// Model возвращает модель распознавателя.
func (r *AprilRecognizer) Model() *april.Model {
	return r.model
}

// SampleRate возвращает частоту дискретизации модели.
func (r *AprilRecognizer) SampleRate() int {
	return r.model.SampleRate()
}

// chunkSamples - число сэмплов в одном куске.
func (r *AprilRecognizer) chunkSamples() int {
	rate := r.SampleRate()
	if rate <= 0 {
		rate = 16000
	}
	n := int(int64(rate) * int64(r.chunk) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n
}

// Transcribe распознаёт речь из PCM16 сэмплов в синхронной сессии.
func (r *AprilRecognizer) Transcribe(ctx context.Context, samples []int16) (Transcript, error) {
	if len(samples) == 0 {
		return Transcript{}, april.ErrEmptyAudio
	}

	var (
		mu sync.Mutex
		tr Transcript
	)
	cfg := april.NewConfig()
	cfg.SetHandler(func(result april.ResultType, tokens april.Tokens) {
		mu.Lock()
		defer mu.Unlock()
		switch result {
		case april.ResultRecognitionFinal:
			tr.Segments = append(tr.Segments, Segment{Text: Result{Tokens: tokens}.Text(), Tokens: tokens})
			tr.Partial = ""
		case april.ResultRecognitionPartial:
			tr.Partial = Result{Tokens: tokens}.Text()
		case april.ResultErrorCantKeepUp:
			r.log.Warn("engine can't keep up")
		}
	})

	sess, err := r.model.NewSession(cfg)
	if err != nil {
		return Transcript{}, fmt.Errorf("создание сессии: %w", err)
	}
	defer sess.Close()

	log := r.log.With(zap.String("session", sess.ID()))
	start := time.Now()

	step := r.chunkSamples()
	for off := 0; off < len(samples); off += step {
		if err := ctx.Err(); err != nil {
			return Transcript{}, err
		}
		end := min(off+step, len(samples))
		if err := sess.FeedPCM16(samples[off:end]); err != nil {
			return Transcript{}, err
		}
	}
	if err := sess.Flush(); err != nil {
		return Transcript{}, err
	}

	mu.Lock()
	defer mu.Unlock()
	log.Debug("transcribed",
		zap.Int("samples", len(samples)),
		zap.Int("segments", len(tr.Segments)),
		zap.Duration("took", time.Since(start)))
	return tr, nil
}

// Stream открывает живую сессию в режиме, заданном в Options.Mode.
func (r *AprilRecognizer) Stream(handler StreamHandler) (*Stream, error) {
	return r.StreamMode(r.mode, handler)
}

// StreamMode открывает живую сессию в режиме mode.
func (r *AprilRecognizer) StreamMode(mode april.ConfigFlags, handler StreamHandler) (*Stream, error) {
	cfg := april.NewConfig()
	cfg.Flags = mode
	if handler != nil {
		cfg.SetHandler(func(result april.ResultType, tokens april.Tokens) {
			handler(Result{Type: result, Tokens: tokens})
		})
	}

	sess, err := r.model.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("создание сессии: %w", err)
	}
	r.log.Debug("stream opened", zap.String("session", sess.ID()), zap.Stringer("mode", mode))
	return &Stream{sess: sess}, nil
}

// Close освобождает модель. Открытые потоки продолжают работать до своего Close.
func (r *AprilRecognizer) Close() {
	_ = r.model.Close()
}

// Stream - живая сессия распознавания.
type Stream struct {
	sess *april.Session
}

// ID возвращает идентификатор сессии.
func (s *Stream) ID() string { return s.sess.ID() }

// Mode возвращает флаги сессии.
func (s *Stream) Mode() april.ConfigFlags { return s.sess.Flags() }

// Feed подаёт PCM16 сэмплы.
func (s *Stream) Feed(samples []int16) error { return s.sess.FeedPCM16(samples) }

// FeedBytes подаёт PCM16 little-endian байты.
func (s *Stream) FeedBytes(data []byte) error { return s.sess.FeedPCM16LE(data) }

// Flush завершает текущий сегмент.
func (s *Stream) Flush() error { return s.sess.Flush() }

// Speedup возвращает текущее ускорение в режиме реального времени.
func (s *Stream) Speedup() float32 { return s.sess.RealtimeSpeedup() }

// Close закрывает сессию. После возврата handler больше не вызывается.
func (s *Stream) Close() error { return s.sess.Close() }
