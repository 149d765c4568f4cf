//go:build ignore

// Генерация иконок трея: пять вертикальных полос разной высоты.
// Запуск: go run scripts/generate_icons.go [dir]
package main

import (
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
)

const (
	size     = 64
	barWidth = 8
	barGap   = 4
)

var barHeights = []int{14, 30, 44, 30, 14}

func main() {
	dir := "embedded"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("create %s: %v", dir, err)
	}

	icons := []struct {
		name  string
		color color.RGBA
	}{
		{"icon_idle.png", color.RGBA{128, 128, 128, 255}},
		{"icon_recording.png", color.RGBA{220, 50, 50, 255}},
		{"icon_processing.png", color.RGBA{230, 160, 50, 255}},
	}
	for _, icon := range icons {
		path := filepath.Join(dir, icon.name)
		if err := writeIcon(path, icon.color); err != nil {
			log.Fatalf("%s: %v", icon.name, err)
		}
		log.Printf("wrote %s", path)
	}
}

func writeIcon(path string, c color.RGBA) error {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	total := len(barHeights)*barWidth + (len(barHeights)-1)*barGap
	left := (size - total) / 2
	for i, h := range barHeights {
		x0 := left + i*(barWidth+barGap)
		y0 := (size - h) / 2
		for y := y0; y < y0+h; y++ {
			for x := x0; x < x0+barWidth; x++ {
				img.Set(x, y, c)
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
