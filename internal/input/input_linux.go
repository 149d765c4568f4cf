//go:build linux

package input

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

type linuxTyper struct {
	tool string
	args []string
}

func newTyper() (Typer, error) {
	t := &linuxTyper{tool: "xdotool", args: []string{"type", "--clearmodifiers", "--"}}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		t = &linuxTyper{tool: "wtype", args: []string{"--"}}
	}
	if _, err := exec.LookPath(t.tool); err != nil {
		return nil, fmt.Errorf("input: %s not found: %w", t.tool, err)
	}
	return t, nil
}

func (t *linuxTyper) Type(ctx context.Context, text string) error {
	args := append(append([]string{}, t.args...), text)
	out, err := exec.CommandContext(ctx, t.tool, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("input: %s: %w: %s", t.tool, err, out)
	}
	return nil
}
