// Package speech предоставляет распознаватели речи поверх привязки April.
package speech

import (
	"context"
	"math"
	"strings"

	"aprilgo/pkg/april"
)

// Recognizer - интерфейс для движков распознавания речи.
type Recognizer interface {
	// Transcribe распознаёт речь целиком: samples - PCM16 mono с частотой
	// SampleRate(). Пустой ввод возвращает april.ErrEmptyAudio.
	Transcribe(ctx context.Context, samples []int16) (Transcript, error)

	// Stream открывает живую сессию; результаты приходят в handler.
	Stream(handler StreamHandler) (*Stream, error)

	// SampleRate возвращает частоту дискретизации модели.
	SampleRate() int

	// Close освобождает ресурсы движка.
	Close()

	// Name возвращает название движка (для логирования).
	Name() string
}

// Segment - один финальный результат.
type Segment struct {
	Text   string
	Tokens april.Tokens
}

// Transcript - результат Transcribe.
type Transcript struct {
	Segments []Segment
	// Partial - последний промежуточный результат, который так и не стал финальным.
	Partial string
}

// Text склеивает все финальные сегменты.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Result - результат живой сессии.
type Result struct {
	Type   april.ResultType
	Tokens april.Tokens
}

// Text возвращает текст результата без ведущих пробелов.
func (r Result) Text() string {
	return strings.TrimSpace(r.Tokens.Text())
}

// StreamHandler получает результаты живой сессии. В асинхронном режиме
// вызывается из потока движка и не должен блокироваться надолго.
type StreamHandler func(Result)

// Float32ToPCM16 конвертирует float32 [-1, 1] в int16 [-32768, 32767].
func Float32ToPCM16(samples []float32) []int16 {
	pcm := make([]int16, len(samples))
	for i, sample := range samples {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		pcm[i] = int16(sample * math.MaxInt16)
	}
	return pcm
}
