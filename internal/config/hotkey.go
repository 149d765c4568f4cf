package config

import (
	"fmt"
	"strings"
)

// Modifier представляет модификатор клавиши.
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
	ModSuper Modifier = "super" // Win/Cmd
)

// Key представляет клавишу: "space", "return", "tab", "a".."z", "f1".."f12".
type Key string

const (
	KeySpace  Key = "space"
	KeyReturn Key = "return"
	KeyTab    Key = "tab"
)

// HotkeyConfig хранит настройки горячей клавиши.
type HotkeyConfig struct {
	Modifiers []Modifier
	Key       Key
}

// String возвращает строковое представление горячей клавиши, например "ctrl+shift+space".
func (h HotkeyConfig) String() string {
	parts := make([]string, 0, len(h.Modifiers)+1)
	for _, m := range h.Modifiers {
		parts = append(parts, string(m))
	}
	parts = append(parts, string(h.Key))
	return strings.Join(parts, "+")
}

// ParseHotkey разбирает строку вида "ctrl+shift+space".
func ParseHotkey(s string) (HotkeyConfig, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) < 2 {
		return HotkeyConfig{}, fmt.Errorf("горячая клавиша %q: нужен хотя бы один модификатор", s)
	}

	var hk HotkeyConfig
	for _, p := range parts[:len(parts)-1] {
		m := Modifier(strings.TrimSpace(p))
		switch m {
		case ModCtrl, ModShift, ModAlt, ModSuper:
			hk.Modifiers = append(hk.Modifiers, m)
		default:
			return HotkeyConfig{}, fmt.Errorf("горячая клавиша %q: неизвестный модификатор %q", s, p)
		}
	}

	hk.Key = Key(strings.TrimSpace(parts[len(parts)-1]))
	if !validKey(hk.Key) {
		return HotkeyConfig{}, fmt.Errorf("горячая клавиша %q: неизвестная клавиша %q", s, hk.Key)
	}
	return hk, nil
}

func validKey(k Key) bool {
	for _, avail := range AvailableKeys() {
		if k == avail {
			return true
		}
	}
	return false
}

// AvailableModifiers возвращает список доступных модификаторов.
func AvailableModifiers() []Modifier {
	return []Modifier{ModCtrl, ModShift, ModAlt, ModSuper}
}

// AvailableKeys возвращает список доступных клавиш.
func AvailableKeys() []Key {
	keys := []Key{KeySpace, KeyReturn, KeyTab}
	for c := 'a'; c <= 'z'; c++ {
		keys = append(keys, Key(string(c)))
	}
	for i := 1; i <= 12; i++ {
		keys = append(keys, Key(fmt.Sprintf("f%d", i)))
	}
	return keys
}
