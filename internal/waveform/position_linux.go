//go:build linux

package waveform

import (
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// positionWindow moves the window to the bottom-right corner and keeps it
// above other windows. Needs xdotool; wmctrl or xprop for "above".
func positionWindow(title string, width, height int) {
	time.Sleep(100 * time.Millisecond)

	screenW, screenH := screenSize()
	if screenW == 0 || screenH == 0 {
		return
	}

	out, err := exec.Command("xdotool", "search", "--name", title).Output()
	if err != nil {
		return
	}
	ids := strings.Fields(string(out))
	if len(ids) == 0 {
		return
	}
	id := ids[0]

	x := screenW - width - 20
	y := screenH - height - 60
	_ = exec.Command("xdotool", "windowmove", id, strconv.Itoa(x), strconv.Itoa(y)).Run()

	if err := exec.Command("wmctrl", "-i", "-r", id, "-b", "add,above").Run(); err != nil {
		_ = exec.Command("xprop", "-id", id, "-f", "_NET_WM_STATE", "32a",
			"-set", "_NET_WM_STATE", "_NET_WM_STATE_ABOVE").Run()
	}
}

func screenSize() (width, height int) {
	out, err := exec.Command("xdotool", "getdisplaygeometry").Output()
	if err != nil {
		return 0, 0
	}
	parts := strings.Fields(string(out))
	if len(parts) != 2 {
		return 0, 0
	}
	width, _ = strconv.Atoi(parts[0])
	height, _ = strconv.Atoi(parts[1])
	return width, height
}
