// Package i18n provides internationalization support.
package i18n

import (
	"fmt"
	"strings"
	"sync"
)

// Language represents a UI language.
type Language string

const (
	RU Language = "ru"
	EN Language = "en"
)

var (
	mu      sync.RWMutex
	current = RU // Default language
)

// Translations for all supported languages.
var translations = map[Language]map[string]string{
	RU: {
		// App
		"app_name": "April",

		// Notifications
		"notify_recording":      "Запись...",
		"notify_recording_hint": "Говорите в микрофон, %s - остановить",
		"notify_done":           "Готово",
		"notify_empty":          "Не удалось распознать",
		"notify_empty_hint":     "Попробуйте ещё раз",
		"notify_error":          "Ошибка",
		"notify_ready":          "April готов к работе, %s - начать диктовку",
		"notify_cant_keep_up":   "Распознавание не успевает за речью",

		// Dialogs
		"dialog_select_model": "Выберите файл модели April",
		"dialog_model_filter": "Модели April",
		"dialog_error_title":  "April: ошибка",

		// Tray
		"tray_tooltip":            "April - голосовой ввод",
		"tray_ready":              "Готов",
		"tray_recording":          "Запись...",
		"tray_processing":         "Распознавание...",
		"tray_notifications":      "Уведомления",
		"tray_notifications_hint": "Показывать распознанный текст",
		"tray_model":              "Выбрать модель...",
		"tray_model_hint":         "Загрузить другой файл .april",
		"tray_quit":               "Выход",
		"tray_quit_hint":          "Завершить диктовку",

		// Overlay
		"overlay_listening":  "Слушаю",
		"overlay_processing": "Завершаю распознавание",
		"overlay_result":     "Распознано",
		"overlay_hint":       "Говорите, текст появится здесь",

		// CLI
		"cli_model":          "Модель",
		"cli_description":    "Описание",
		"cli_language":       "Язык",
		"cli_sample_rate":    "Частота",
		"cli_downloaded":     "скачана",
		"cli_not_downloaded": "не скачана",
		"cli_listening":      "Диктовка: %s - начать/остановить, Ctrl+C - выход",
		"cli_serving":        "Сервер слушает %s",
		"cli_downloading":    "Скачивание %s: %d%%",
	},
	EN: {
		"app_name": "April",

		"notify_recording":      "Recording...",
		"notify_recording_hint": "Speak into the microphone, %s to stop",
		"notify_done":           "Done",
		"notify_empty":          "Nothing recognized",
		"notify_empty_hint":     "Please try again",
		"notify_error":          "Error",
		"notify_ready":          "April is ready, %s to start dictation",
		"notify_cant_keep_up":   "Recognition can't keep up with speech",

		"dialog_select_model": "Select an April model file",
		"dialog_model_filter": "April models",
		"dialog_error_title":  "April: error",

		"tray_tooltip":            "April - voice input",
		"tray_ready":              "Ready",
		"tray_recording":          "Recording...",
		"tray_processing":         "Recognizing...",
		"tray_notifications":      "Notifications",
		"tray_notifications_hint": "Show recognized text",
		"tray_model":              "Choose model...",
		"tray_model_hint":         "Load another .april file",
		"tray_quit":               "Quit",
		"tray_quit_hint":          "Stop dictation and exit",

		"overlay_listening":  "Listening",
		"overlay_processing": "Finishing recognition",
		"overlay_result":     "Recognized",
		"overlay_hint":       "Speak, text will appear here",

		"cli_model":          "Model",
		"cli_description":    "Description",
		"cli_language":       "Language",
		"cli_sample_rate":    "Sample rate",
		"cli_downloaded":     "downloaded",
		"cli_not_downloaded": "not downloaded",
		"cli_listening":      "Dictation: %s to start/stop, Ctrl+C to quit",
		"cli_serving":        "Server listening on %s",
		"cli_downloading":    "Downloading %s: %d%%",
	},
}

// T returns the translation of key in the current language.
func T(key string) string {
	mu.RLock()
	defer mu.RUnlock()

	if tr, ok := translations[current]; ok {
		if s, ok := tr[key]; ok {
			return s
		}
	}
	// Fallback to key itself
	return key
}

// Tf formats the translation of key with args.
func Tf(key string, args ...any) string {
	return fmt.Sprintf(T(key), args...)
}

// SetLanguage sets the current UI language.
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()
	current = lang
}

// ParseLanguage returns the supported language for a code like "en" or "en_US.UTF-8".
func ParseLanguage(code string) (Language, bool) {
	code = strings.ToLower(code)
	for _, l := range AvailableLanguages() {
		if code == string(l) || strings.HasPrefix(code, string(l)+"_") || strings.HasPrefix(code, string(l)+"-") {
			return l, true
		}
	}
	return "", false
}

// GetLanguage returns the current UI language.
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// AvailableLanguages returns list of supported languages.
func AvailableLanguages() []Language {
	return []Language{RU, EN}
}

// LanguageName returns display name for a language.
func LanguageName(lang Language) string {
	switch lang {
	case RU:
		return "Русский"
	case EN:
		return "English"
	default:
		return string(lang)
	}
}
