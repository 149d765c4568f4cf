// Package dialog предоставляет системные диалоги: выбор модели и горячей клавиши.
package dialog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ncruces/zenity"

	"aprilgo/internal/config"
	"aprilgo/internal/i18n"
)

// ErrCanceled возвращается, если пользователь закрыл диалог.
var ErrCanceled = zenity.ErrCanceled

// SelectModelFile открывает диалог выбора файла модели .april в dir.
func SelectModelFile(dir string) (string, error) {
	opts := []zenity.Option{
		zenity.Title(i18n.T("dialog_select_model")),
		zenity.FileFilter{Name: i18n.T("dialog_model_filter"), Patterns: []string{"*.april"}, CaseFold: true},
	}
	if dir != "" {
		opts = append(opts, zenity.Filename(strings.TrimSuffix(dir, "/")+"/"))
	}
	return zenity.SelectFile(opts...)
}

var modifierLabels = map[config.Modifier]string{
	config.ModCtrl:  "Ctrl",
	config.ModShift: "Shift",
	config.ModAlt:   "Alt",
	config.ModSuper: "Super (Win/Cmd)",
}

func keyLabel(k config.Key) string {
	switch k {
	case config.KeySpace:
		return "Space"
	case config.KeyReturn:
		return "Return"
	case config.KeyTab:
		return "Tab"
	default:
		return strings.ToUpper(string(k))
	}
}

// SelectHotkey открывает диалог выбора горячей клавиши.
// Возвращает выбранную конфигурацию или ошибку если пользователь отменил.
func SelectHotkey(current config.HotkeyConfig) (config.HotkeyConfig, error) {
	// Шаг 1: модификаторы
	mods := config.AvailableModifiers()
	modOptions := make([]string, len(mods))
	for i, m := range mods {
		modOptions[i] = modifierLabels[m]
	}
	currentMods := make([]string, 0, len(current.Modifiers))
	for _, m := range current.Modifiers {
		currentMods = append(currentMods, modifierLabels[m])
	}

	selectedMods, err := zenity.ListMultiple(
		"Выберите модификаторы:",
		modOptions,
		zenity.Title("Горячая клавиша - модификаторы"),
		zenity.DefaultItems(currentMods...),
	)
	if err != nil {
		return current, err
	}
	if len(selectedMods) == 0 {
		return current, errors.New("необходимо выбрать хотя бы один модификатор")
	}

	newMods := make([]config.Modifier, 0, len(selectedMods))
	for _, s := range selectedMods {
		for i, opt := range modOptions {
			if s == opt {
				newMods = append(newMods, mods[i])
				break
			}
		}
	}

	// Шаг 2: клавиша
	keys := config.AvailableKeys()
	keyOptions := make([]string, len(keys))
	for i, k := range keys {
		keyOptions[i] = keyLabel(k)
	}

	selectedKey, err := zenity.List(
		"Выберите клавишу:",
		keyOptions,
		zenity.Title("Горячая клавиша - клавиша"),
		zenity.DefaultItems(keyLabel(current.Key)),
	)
	if err != nil {
		return current, err
	}

	for i, opt := range keyOptions {
		if selectedKey == opt {
			return config.HotkeyConfig{Modifiers: newMods, Key: keys[i]}, nil
		}
	}
	return current, fmt.Errorf("неизвестная клавиша %q", selectedKey)
}

// ShowInfo показывает информационное сообщение.
func ShowInfo(title, message string) {
	_ = zenity.Info(message, zenity.Title(title))
}

// ShowError показывает сообщение об ошибке.
func ShowError(message string) {
	_ = zenity.Error(message, zenity.Title(i18n.T("dialog_error_title")))
}
