// Package audio предоставляет запись аудио с микрофона и чтение аудиофайлов.
package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	// DefaultSampleRate - частота дискретизации, если модель не сообщила свою.
	DefaultSampleRate = 16000
	// Channels - количество каналов (mono).
	Channels = 1
	// FramesPerBuffer - размер буфера.
	FramesPerBuffer = 1024
)

// FrameFunc получает очередной кадр PCM16. Кадр принадлежит получателю.
type FrameFunc func(frame []int16)

// Recorder записывает аудио с микрофона.
type Recorder struct {
	mu         sync.Mutex
	sampleRate int
	stream     *portaudio.Stream
	buffer     []int16
	samples    []int16
	onFrame    FrameFunc
	running    bool
	done       chan struct{}
}

// New инициализирует portaudio и создаёт Recorder с частотой sampleRate.
func New(sampleRate int) (*Recorder, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	return &Recorder{
		sampleRate: sampleRate,
		buffer:     make([]int16, FramesPerBuffer),
	}, nil
}

// SampleRate возвращает частоту записи.
func (r *Recorder) SampleRate() int {
	return r.sampleRate
}

// Start начинает запись аудио. onFrame (может быть nil) вызывается из
// горутины записи для каждого прочитанного кадра.
func (r *Recorder) Start(onFrame FrameFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("audio: already recording")
	}

	r.samples = make([]int16, 0, r.sampleRate*30) // Буфер на 30 сек
	r.onFrame = onFrame
	r.done = make(chan struct{})

	stream, err := portaudio.OpenDefaultStream(
		Channels,              // input channels
		0,                     // output channels
		float64(r.sampleRate), // sample rate
		FramesPerBuffer,       // frames per buffer
		r.buffer,              // buffer
	)
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	r.stream = stream
	r.running = true
	go r.recordLoop(stream)

	return nil
}

func (r *Recorder) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Recorder) recordLoop(stream *portaudio.Stream) {
	defer close(r.done)

	for r.isRunning() {
		available, err := stream.AvailableToRead()
		if err != nil || available < FramesPerBuffer {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if err := stream.Read(); err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		frame := make([]int16, len(r.buffer))
		copy(frame, r.buffer)

		r.mu.Lock()
		if !r.running {
			r.mu.Unlock()
			return
		}
		r.samples = append(r.samples, frame...)
		onFrame := r.onFrame
		r.mu.Unlock()

		if onFrame != nil {
			onFrame(frame)
		}
	}
}

// Stop останавливает запись и возвращает все записанные сэмплы.
// После возврата onFrame больше не вызывается.
func (r *Recorder) Stop() []int16 {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}

	r.running = false
	stream := r.stream
	r.stream = nil
	samples := r.samples
	r.samples = nil
	r.onFrame = nil
	done := r.done
	r.mu.Unlock()

	// recordLoop проверяет running каждые 10ms или после очередного кадра
	<-done

	stream.Stop()
	stream.Close()

	return samples
}

// Close освобождает ресурсы.
func (r *Recorder) Close() {
	r.Stop()
	portaudio.Terminate()
}

// IsRecording возвращает true если идёт запись.
func (r *Recorder) IsRecording() bool {
	return r.isRunning()
}
