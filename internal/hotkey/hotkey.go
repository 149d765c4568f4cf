// Package hotkey предоставляет глобальную горячую клавишу для диктовки.
package hotkey

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"

	"aprilgo/internal/config"
)

// debounceInterval защищает от key repeat.
const debounceInterval = 300 * time.Millisecond

// Handler вызывает onToggle при каждом нажатии горячей клавиши.
type Handler struct {
	mu       sync.Mutex
	hk       *hotkey.Hotkey
	onToggle func()
	current  config.HotkeyConfig
	stopCh   chan struct{}
	done     chan struct{}
	log      *zap.Logger
}

// New создаёт обработчик горячей клавиши.
func New(onToggle func(), log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{onToggle: onToggle, log: log}
}

// Register регистрирует горячую клавишу, заменяя предыдущую.
func (h *Handler) Register(cfg config.HotkeyConfig) error {
	if err := h.Unregister(); err != nil {
		h.log.Warn("unregister previous hotkey", zap.Error(err))
	}

	mods := make([]hotkey.Modifier, 0, len(cfg.Modifiers))
	for _, m := range cfg.Modifiers {
		mod, ok := modifierMap[m]
		if !ok {
			return fmt.Errorf("hotkey: unsupported modifier %q", m)
		}
		mods = append(mods, mod)
	}
	key, ok := keyMap[cfg.Key]
	if !ok {
		return fmt.Errorf("hotkey: unsupported key %q", cfg.Key)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("hotkey: register %s: %w", cfg, err)
	}

	h.mu.Lock()
	h.hk = hk
	h.current = cfg
	h.stopCh = make(chan struct{})
	h.done = make(chan struct{})
	go h.listen(hk, h.stopCh, h.done)
	h.mu.Unlock()

	h.log.Info("hotkey registered", zap.Stringer("hotkey", cfg))
	return nil
}

func (h *Handler) listen(hk *hotkey.Hotkey, stopCh, done chan struct{}) {
	defer close(done)

	var d debouncer
	for {
		select {
		case <-stopCh:
			return
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			if d.accept(time.Now()) && h.onToggle != nil {
				h.onToggle()
			}
		case _, ok := <-hk.Keyup():
			if !ok {
				return
			}
			// В toggle режиме keyup не нужен
		}
	}
}

// Unregister отменяет регистрацию горячей клавиши.
func (h *Handler) Unregister() error {
	h.mu.Lock()
	hk, stopCh, done := h.hk, h.stopCh, h.done
	h.hk, h.stopCh, h.done = nil, nil, nil
	h.mu.Unlock()

	if hk == nil {
		return nil
	}
	close(stopCh)
	<-done

	errCh := make(chan error, 1)
	go func() { errCh <- hk.Unregister() }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(500 * time.Millisecond):
		return fmt.Errorf("hotkey: unregister timed out")
	}
}

// Current возвращает текущую зарегистрированную горячую клавишу.
func (h *Handler) Current() config.HotkeyConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// RunOnMainThread запускает fn, оставляя главный поток для событий клавиатуры
// (требование macOS).
func RunOnMainThread(fn func()) {
	mainthread.Init(fn)
}

type debouncer struct {
	last time.Time
}

func (d *debouncer) accept(now time.Time) bool {
	if !d.last.IsZero() && now.Sub(d.last) < debounceInterval {
		return false
	}
	d.last = now
	return true
}

// modifierMap определён в modifiers_<os>.go.

// keyMap маппинг config.Key -> hotkey.Key для всех config.AvailableKeys.
var keyMap = func() map[config.Key]hotkey.Key {
	letters := []hotkey.Key{
		hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
		hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
		hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
		hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
		hotkey.KeyY, hotkey.KeyZ,
	}
	functions := []hotkey.Key{
		hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4, hotkey.KeyF5, hotkey.KeyF6,
		hotkey.KeyF7, hotkey.KeyF8, hotkey.KeyF9, hotkey.KeyF10, hotkey.KeyF11, hotkey.KeyF12,
	}

	m := map[config.Key]hotkey.Key{
		config.KeySpace:  hotkey.KeySpace,
		config.KeyReturn: hotkey.KeyReturn,
		config.KeyTab:    hotkey.KeyTab,
	}
	for i, k := range letters {
		m[config.Key(string(rune('a'+i)))] = k
	}
	for i, k := range functions {
		m[config.Key(fmt.Sprintf("f%d", i+1))] = k
	}
	return m
}()
