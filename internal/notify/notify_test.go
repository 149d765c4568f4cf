package notify

import (
	"strings"
	"testing"

	"aprilgo/internal/i18n"
)

type sent struct{ title, message string }

func capture(n *Notifier) *[]sent {
	var out []sent
	n.SetSender(func(title, message, icon string) error {
		out = append(out, sent{title, message})
		return nil
	})
	return &out
}

func TestTranscript(t *testing.T) {
	defer i18n.SetLanguage(i18n.GetLanguage())
	i18n.SetLanguage(i18n.EN)

	n := New(true, nil)
	out := capture(n)

	n.Transcript("hello world")
	n.Transcript("")
	n.Transcript(strings.Repeat("я", 150))

	if len(*out) != 3 {
		t.Fatalf("sent %d notifications", len(*out))
	}
	if got := (*out)[0]; got.title != "April: Done" || got.message != "hello world" {
		t.Fatalf("final = %+v", got)
	}
	if got := (*out)[1]; got.title != "April: Nothing recognized" {
		t.Fatalf("empty = %+v", got)
	}
	if got := (*out)[2].message; got != strings.Repeat("я", 100)+"..." {
		t.Fatalf("long message not truncated on a rune boundary: %q", got)
	}
}

func TestDisabled(t *testing.T) {
	n := New(false, nil)
	out := capture(n)
	n.Error("boom")
	n.Ready("ctrl+shift+space")
	if len(*out) != 0 {
		t.Fatalf("disabled notifier sent %d notifications", len(*out))
	}
}
