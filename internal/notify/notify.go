// Package notify предоставляет системные уведомления.
package notify

import (
	"unicode/utf8"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"aprilgo/internal/i18n"
)

// maxMessage - сколько символов текста показывать в уведомлении.
const maxMessage = 100

// SendFunc отправляет уведомление; по умолчанию beeep.Notify.
type SendFunc func(title, message, icon string) error

// Notifier отправляет системные уведомления.
type Notifier struct {
	enabled bool
	send    SendFunc
	log     *zap.Logger
}

// New создаёт новый Notifier.
func New(enabled bool, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{enabled: enabled, send: beeepNotify, log: log}
}

// SetSender заменяет способ отправки.
func (n *Notifier) SetSender(send SendFunc) {
	n.send = send
}

// SetEnabled включает/выключает уведомления.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Ready показывает, что диктовка доступна по горячей клавише.
func (n *Notifier) Ready(hotkey string) {
	n.notify("", i18n.Tf("notify_ready", hotkey))
}

// Recording показывает уведомление о начале записи.
func (n *Notifier) Recording(hotkey string) {
	n.notify(i18n.T("notify_recording"), i18n.Tf("notify_recording_hint", hotkey))
}

// Transcript показывает финальный результат распознавания.
func (n *Notifier) Transcript(text string) {
	if text == "" {
		n.notify(i18n.T("notify_empty"), i18n.T("notify_empty_hint"))
		return
	}
	n.notify(i18n.T("notify_done"), truncate(text))
}

// CantKeepUp предупреждает, что движок отстаёт от реального времени.
func (n *Notifier) CantKeepUp() {
	n.notify("", i18n.T("notify_cant_keep_up"))
}

// Error показывает уведомление об ошибке.
func (n *Notifier) Error(msg string) {
	n.notify(i18n.T("notify_error"), truncate(msg))
}

func beeepNotify(title, message, icon string) error {
	return beeep.Notify(title, message, icon)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxMessage {
		return s
	}
	r := []rune(s)
	return string(r[:maxMessage]) + "..."
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled {
		return
	}
	app := i18n.T("app_name")
	if title != "" {
		title = app + ": " + title
	} else {
		title = app
	}
	// Ошибки уведомлений не критичны
	if err := n.send(title, message, ""); err != nil {
		n.log.Debug("notification failed", zap.Error(err))
	}
}
