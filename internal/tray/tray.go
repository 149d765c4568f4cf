// Package tray показывает состояние диктовки в системном трее.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"aprilgo/embedded"
	"aprilgo/internal/i18n"
)

// State - состояние диктовки, отображаемое иконкой.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

// Callbacks обработчики пунктов меню. Любой может быть nil.
type Callbacks struct {
	// OnNotificationsToggle возвращает новое значение флажка.
	OnNotificationsToggle func() bool
	OnPickModel           func()
	OnQuit                func()
}

// Tray управляет иконкой в трее.
type Tray struct {
	callbacks     Callbacks
	notifications bool

	mu        sync.Mutex
	ready     bool
	state     State
	status    *systray.MenuItem
	notifyOn  *systray.MenuItem
	modelBtn  *systray.MenuItem
	quitBtn   *systray.MenuItem
	modelName string
	quitOnce  sync.Once
}

// New создаёт Tray. notifications - начальное состояние флажка уведомлений.
func New(callbacks Callbacks, notifications bool) *Tray {
	return &Tray{callbacks: callbacks, notifications: notifications}
}

// Run запускает трей и блокируется до Quit. onReady вызывается после
// создания меню.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.build()
		if onReady != nil {
			onReady()
		}
	}, nil)
}

func (t *Tray) build() {
	systray.SetIcon(embedded.IconIdle)
	systray.SetTitle(i18n.T("app_name"))
	systray.SetTooltip(i18n.T("tray_tooltip"))

	t.mu.Lock()
	t.status = systray.AddMenuItem(i18n.T("tray_ready"), "")
	t.status.Disable()
	systray.AddSeparator()
	t.notifyOn = systray.AddMenuItemCheckbox(i18n.T("tray_notifications"), i18n.T("tray_notifications_hint"), t.notifications)
	t.modelBtn = systray.AddMenuItem(i18n.T("tray_model"), i18n.T("tray_model_hint"))
	systray.AddSeparator()
	t.quitBtn = systray.AddMenuItem(i18n.T("tray_quit"), i18n.T("tray_quit_hint"))
	t.ready = true
	state := t.state
	t.mu.Unlock()

	// Состояние могло смениться до готовности трея.
	t.SetState(state)
	go t.handleMenuEvents()
}

func (t *Tray) handleMenuEvents() {
	for {
		select {
		case <-t.notifyOn.ClickedCh:
			if t.callbacks.OnNotificationsToggle == nil {
				continue
			}
			if t.callbacks.OnNotificationsToggle() {
				t.notifyOn.Check()
			} else {
				t.notifyOn.Uncheck()
			}

		case <-t.modelBtn.ClickedCh:
			if t.callbacks.OnPickModel != nil {
				t.callbacks.OnPickModel()
			}

		case <-t.quitBtn.ClickedCh:
			if t.callbacks.OnQuit != nil {
				t.callbacks.OnQuit()
			}
			t.Quit()
			return
		}
	}
}

// SetState меняет иконку и строку статуса.
func (t *Tray) SetState(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = state
	if !t.ready {
		return
	}

	icon, key := embedded.IconIdle, "tray_ready"
	switch state {
	case StateRecording:
		icon, key = embedded.IconRecording, "tray_recording"
	case StateProcessing:
		icon, key = embedded.IconProcessing, "tray_processing"
	}
	status := i18n.T(key)
	if state == StateIdle && t.modelName != "" {
		status += " (" + t.modelName + ")"
	}

	systray.SetIcon(icon)
	systray.SetTooltip(i18n.T("app_name") + " - " + i18n.T(key))
	t.status.SetTitle(status)
}

// SetModel показывает имя загруженной модели в строке статуса.
func (t *Tray) SetModel(name string) {
	t.mu.Lock()
	t.modelName = name
	state := t.state
	t.mu.Unlock()
	t.SetState(state)
}

// Idle, Recording и Processing - короткие формы SetState для контроллера
// диктовки.
func (t *Tray) Idle()       { t.SetState(StateIdle) }
func (t *Tray) Recording()  { t.SetState(StateRecording) }
func (t *Tray) Processing() { t.SetState(StateProcessing) }

// Quit закрывает трей; Run возвращается. Повторные вызовы ничего не делают.
func (t *Tray) Quit() {
	t.quitOnce.Do(systray.Quit)
}
