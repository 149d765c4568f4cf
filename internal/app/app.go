// Package app содержит логику диктовки: горячая клавиша включает запись,
// кадры с микрофона идут в живую сессию April, финальные результаты
// показываются в уведомлении и вводятся в активное поле. Состояние
// отображается иконкой в трее и плавающим окном с сигналом.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"aprilgo/internal/audio"
	"aprilgo/internal/config"
	"aprilgo/internal/input"
	"aprilgo/internal/notify"
	"aprilgo/internal/speech"
	"aprilgo/pkg/april"
)

// resultBuffer - сколько результатов может ждать доставки.
const resultBuffer = 64

// typeTimeout ограничивает ввод одного фрагмента текста.
const typeTimeout = 10 * time.Second

// ErrNoRecognizer возвращается, если модель ещё не загружена.
var ErrNoRecognizer = errors.New("app: recognizer is not loaded")

// Microphone - источник PCM16; реализуется audio.Recorder.
type Microphone interface {
	Start(onFrame audio.FrameFunc) error
	Stop() []int16
	IsRecording() bool
}

// Indicator показывает состояние диктовки; реализуется tray.Tray.
type Indicator interface {
	Idle()
	Recording()
	Processing()
}

// Overlay - окно с сигналом микрофона и текущим текстом; реализуется
// waveform.Window.
type Overlay interface {
	Show()
	Push(frame []int16)
	SetText(text string)
	Processing()
	Done(text string)
}

type nopIndicator struct{}

func (nopIndicator) Idle()       {}
func (nopIndicator) Recording()  {}
func (nopIndicator) Processing() {}

type nopOverlay struct{}

func (nopOverlay) Show()          {}
func (nopOverlay) Push([]int16)   {}
func (nopOverlay) SetText(string) {}
func (nopOverlay) Processing()    {}
func (nopOverlay) Done(string)    {}

// Deps зависимости App. Typer, Notifier, Indicator и Overlay могут быть nil.
type Deps struct {
	Config    *config.Config
	Mic       Microphone
	Factory   *speech.Factory
	Typer     input.Typer
	Notifier  *notify.Notifier
	Indicator Indicator
	Overlay   Overlay
	Logger    *zap.Logger
}

// App представляет контроллер диктовки.
type App struct {
	mu       sync.Mutex
	config   *config.Config
	mic      Microphone
	factory  *speech.Factory
	typer    input.Typer
	notifier *notify.Notifier
	ind      Indicator
	overlay  Overlay
	log      *zap.Logger

	dict    *dictation
	started time.Time
}

// dictation - одна запись от нажатия до нажатия.
type dictation struct {
	stream  *speech.Stream
	results chan speech.Result
	done    chan struct{}
	warned  bool
	// finals - тексты финальных результатов; читаются после done.
	finals []string
}

// text - всё, что распознано за диктовку, плюс текущий промежуточный текст.
func (d *dictation) text(partial string) string {
	parts := d.finals
	if partial != "" {
		parts = append(parts[:len(parts):len(parts)], partial)
	}
	return strings.Join(parts, " ")
}

// New создаёт контроллер.
func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.New(false, d.Logger)
	}
	if d.Indicator == nil {
		d.Indicator = nopIndicator{}
	}
	if d.Overlay == nil {
		d.Overlay = nopOverlay{}
	}
	return &App{
		config:   d.Config,
		mic:      d.Mic,
		factory:  d.Factory,
		typer:    d.Typer,
		notifier: d.Notifier,
		ind:      d.Indicator,
		overlay:  d.Overlay,
		log:      d.Logger,
	}
}

// Toggle начинает или останавливает диктовку. Используется как обработчик
// горячей клавиши.
func (a *App) Toggle() {
	var err error
	if a.IsRecording() {
		err = a.Stop()
	} else {
		err = a.Start()
	}
	if err != nil {
		a.log.Error("dictation toggle failed", zap.Error(err))
		a.notifier.Error(err.Error())
	}
}

// IsRecording возвращает true если идёт диктовка.
func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dict != nil
}

// Start открывает живую сессию и включает микрофон.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dict != nil {
		return nil
	}
	rec := a.factory.Current()
	if rec == nil {
		return ErrNoRecognizer
	}

	d := &dictation{
		results: make(chan speech.Result, resultBuffer),
		done:    make(chan struct{}),
	}
	stream, err := rec.Stream(func(r speech.Result) {
		// Вызывается из потока движка: только передаём дальше.
		select {
		case d.results <- r:
		default:
			a.log.Warn("result dropped, delivery is behind", zap.Stringer("result", r.Type))
		}
	})
	if err != nil {
		return err
	}
	d.stream = stream
	log := a.log.With(zap.String("session", stream.ID()))

	go a.deliver(d, log)

	a.overlay.Show()
	err = a.mic.Start(func(frame []int16) {
		a.overlay.Push(frame)
		if err := stream.Feed(frame); err != nil {
			log.Warn("feed failed", zap.Error(err))
		}
	})
	if err != nil {
		a.finish(d)
		a.overlay.Done("")
		return err
	}

	a.dict = d
	a.started = time.Now()
	a.ind.Recording()
	a.notifier.Recording(a.config.Hotkey().String())
	log.Info("dictation started", zap.Stringer("mode", stream.Mode()))
	return nil
}

// Stop выключает микрофон, дожидается финального результата и закрывает сессию.
func (a *App) Stop() error {
	a.mu.Lock()
	d := a.dict
	a.dict = nil
	started := a.started
	a.mu.Unlock()

	if d == nil {
		return nil
	}

	a.ind.Processing()
	a.overlay.Processing()

	samples := a.mic.Stop()
	err := d.stream.Flush()
	a.finish(d)

	a.overlay.Done(d.text(""))
	a.ind.Idle()

	a.log.Info("dictation stopped",
		zap.String("session", d.stream.ID()),
		zap.Int("samples", len(samples)),
		zap.Duration("elapsed", time.Since(started)))
	return err
}

// finish закрывает сессию и ждёт доставки всех результатов.
func (a *App) finish(d *dictation) {
	if err := d.stream.Close(); err != nil {
		a.log.Warn("close session", zap.Error(err))
	}
	// После Close обработчик больше не вызывается.
	close(d.results)
	<-d.done
}

func (a *App) deliver(d *dictation, log *zap.Logger) {
	defer close(d.done)

	dict := a.config.Dictation()
	for r := range d.results {
		switch r.Type {
		case april.ResultRecognitionPartial:
			if dict.Partials {
				log.Info("partial", zap.String("text", r.Text()))
			}
			a.overlay.SetText(d.text(r.Text()))
		case april.ResultRecognitionFinal:
			text := r.Text()
			log.Info("final", zap.String("text", text))
			if text == "" {
				continue
			}
			d.finals = append(d.finals, text)
			a.overlay.SetText(d.text(""))
			a.notifier.Transcript(text)
			if dict.TypeText && a.typer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), typeTimeout)
				if err := a.typer.Type(ctx, text); err != nil {
					log.Error("type text", zap.Error(err))
				}
				cancel()
			}
		case april.ResultErrorCantKeepUp:
			if !d.warned {
				d.warned = true
				a.notifier.CantKeepUp()
			}
			log.Warn("engine can't keep up")
		case april.ResultSilence:
			log.Debug("silence")
		default:
			log.Debug("unhandled result", zap.Stringer("result", r.Type))
		}
	}
}

// Close останавливает диктовку.
func (a *App) Close() {
	if err := a.Stop(); err != nil {
		a.log.Warn("stop dictation", zap.Error(err))
	}
}
