package waveform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"gioui.org/f32"
	"gioui.org/font"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"aprilgo/internal/i18n"
)

var theme = sync.OnceValue(material.NewTheme)

func label(gtx layout.Context, size unit.Sp, text string, col color.NRGBA, weight font.Weight, lines int) layout.Dimensions {
	lbl := material.Label(theme(), size, text)
	lbl.Color = col
	lbl.Font.Weight = weight
	lbl.MaxLines = lines
	return lbl.Layout(gtx)
}

func fill(gtx layout.Context, col color.NRGBA) {
	paint.FillShape(gtx.Ops, col, clip.Rect{Max: gtx.Constraints.Max}.Op())
}

func roundRect(gtx layout.Context, size image.Point, radius unit.Dp, col color.NRGBA) {
	r := gtx.Dp(radius)
	rect := clip.RRect{Rect: image.Rectangle{Max: size}, NE: r, NW: r, SE: r, SW: r}
	paint.FillShape(gtx.Ops, col, rect.Op(gtx.Ops))
}

// drawListening: header with dot and timer, the signal panel, the live text.
func drawListening(gtx layout.Context, samples []float32, elapsed time.Duration, text string, cfg Config) {
	fill(gtx, cfg.BGColor)

	textColor := cfg.TextColor
	if text == "" {
		text, textColor = i18n.T("overlay_hint"), cfg.TextDimColor
	}

	layout.UniformInset(unit.Dp(12)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return drawDot(gtx, elapsed, cfg.LevelColor)
					}),
					layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return label(gtx, unit.Sp(14), i18n.T("overlay_listening"), cfg.TextColor, font.Medium, 1)
					}),
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						return layout.Dimensions{}
					}),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return drawTimer(gtx, elapsed, cfg)
					}),
				)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(6)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return drawSignal(gtx, samples, cfg)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(6)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return label(gtx, unit.Sp(13), text, textColor, font.Normal, 1)
			}),
		)
	})
}

// drawDot draws the pulsing recording indicator.
func drawDot(gtx layout.Context, elapsed time.Duration, col color.NRGBA) layout.Dimensions {
	size := gtx.Dp(unit.Dp(10))
	pulse := float32(math.Sin(float64(elapsed.Milliseconds())/200)*0.3 + 0.7)
	col.A = uint8(float32(col.A) * pulse)

	dot := clip.Ellipse{Max: image.Pt(size, size)}
	paint.FillShape(gtx.Ops, col, dot.Op(gtx.Ops))
	return layout.Dimensions{Size: image.Pt(size, size)}
}

func drawTimer(gtx layout.Context, elapsed time.Duration, cfg Config) layout.Dimensions {
	secs := int(elapsed.Seconds())
	text := fmt.Sprintf("%d:%02d", secs/60, secs%60)

	macro := op.Record(gtx.Ops)
	dims := layout.Inset{
		Top: unit.Dp(3), Bottom: unit.Dp(3),
		Left: unit.Dp(8), Right: unit.Dp(8),
	}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return label(gtx, unit.Sp(12), text, cfg.TextColor, font.Bold, 1)
	})
	call := macro.Stop()

	roundRect(gtx, dims.Size, 6, cfg.PanelColor)
	call.Add(gtx.Ops)
	return dims
}

// drawSignal draws the level bar and the wave on a panel.
func drawSignal(gtx layout.Context, samples []float32, cfg Config) layout.Dimensions {
	roundRect(gtx, gtx.Constraints.Max, 8, cfg.PanelColor)

	return layout.UniformInset(unit.Dp(6)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min.X = gtx.Dp(unit.Dp(14))
				gtx.Constraints.Max.X = gtx.Constraints.Min.X
				return drawLevel(gtx, level(samples), cfg)
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return drawWave(gtx, samples, cfg.WaveColor)
			}),
		)
	})
}

// level returns the RMS of the last 1024 samples scaled to 0..1.
func level(samples []float32) float32 {
	if len(samples) > 1024 {
		samples = samples[len(samples)-1024:]
	}
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	// Речь обычно даёт RMS 0.1-0.3.
	l := float32(math.Sqrt(sum/float64(len(samples)))) * 3
	return min(l, 1)
}

func drawLevel(gtx layout.Context, l float32, cfg Config) layout.Dimensions {
	size := gtx.Constraints.Max
	roundRect(gtx, size, 4, color.NRGBA{R: 35, G: 35, B: 40, A: 255})

	h := int(l * float32(size.Y))
	if h > 0 {
		col := cfg.WaveColor
		switch {
		case l > 0.7:
			col = cfg.LevelColor
		case l > 0.4:
			col = color.NRGBA{R: 255, G: 180, B: 0, A: 255}
		}
		bar := clip.Rect{Min: image.Pt(2, size.Y-h), Max: image.Pt(size.X-2, size.Y-2)}
		paint.FillShape(gtx.Ops, col, bar.Op())
	}
	return layout.Dimensions{Size: size}
}

// drawWave draws the newest samples that fit the width, one per pixel.
func drawWave(gtx layout.Context, samples []float32, col color.NRGBA) layout.Dimensions {
	size := gtx.Constraints.Max
	mid := float32(size.Y) / 2

	axis := clip.Rect{Min: image.Pt(0, int(mid)), Max: image.Pt(size.X, int(mid)+1)}
	paint.FillShape(gtx.Ops, color.NRGBA{R: 60, G: 60, B: 65, A: 255}, axis.Op())

	if len(samples) > size.X {
		samples = samples[len(samples)-size.X:]
	}
	if len(samples) < 2 {
		return layout.Dimensions{Size: size}
	}

	var path clip.Path
	path.Begin(gtx.Ops)
	step := float32(size.X) / float32(len(samples))
	for i, s := range samples {
		pt := f32.Pt(float32(i)*step, mid-s*mid*0.85)
		if i == 0 {
			path.MoveTo(pt)
		} else {
			path.LineTo(pt)
		}
	}
	paint.FillShape(gtx.Ops, col, clip.Stroke{Path: path.End(), Width: 2}.Op())
	return layout.Dimensions{Size: size}
}

// drawProcessing shows a spinner while the session is flushed.
func drawProcessing(gtx layout.Context, elapsed time.Duration, text string, cfg Config) {
	fill(gtx, cfg.BGColor)

	layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return drawSpinner(gtx, elapsed, cfg.AccentColor)
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(14)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return label(gtx, unit.Sp(15), i18n.T("overlay_processing"), cfg.TextColor, font.Medium, 1)
					}),
					layout.Rigid(layout.Spacer{Height: unit.Dp(4)}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return label(gtx, unit.Sp(12), text, cfg.TextDimColor, font.Normal, 2)
					}),
				)
			}),
		)
	})
}

func drawSpinner(gtx layout.Context, elapsed time.Duration, col color.NRGBA) layout.Dimensions {
	size := gtx.Dp(unit.Dp(32))
	dotR := gtx.Dp(unit.Dp(2))
	radius := float64(size/2 - dotR)
	rotation := float64(elapsed.Milliseconds()) / 800 * 2 * math.Pi

	const dots = 12
	for i := 0; i < dots; i++ {
		angle := rotation + float64(i)*2*math.Pi/dots
		x := size/2 + int(radius*math.Cos(angle))
		y := size/2 + int(radius*math.Sin(angle))

		c := col
		c.A = uint8(max(255-i*20, 40))
		dot := clip.Ellipse{Min: image.Pt(x-dotR, y-dotR), Max: image.Pt(x+dotR, y+dotR)}
		paint.FillShape(gtx.Ops, c, dot.Op(gtx.Ops))
	}
	return layout.Dimensions{Size: image.Pt(size, size)}
}

// drawResult shows the final text with a check mark.
func drawResult(gtx layout.Context, text string, cfg Config) {
	fill(gtx, cfg.BGColor)

	layout.UniformInset(unit.Dp(14)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return drawCheck(gtx, cfg.WaveColor)
					}),
					layout.Rigid(layout.Spacer{Width: unit.Dp(10)}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return label(gtx, unit.Sp(15), i18n.T("overlay_result"), cfg.TextColor, font.Medium, 1)
					}),
				)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				roundRect(gtx, gtx.Constraints.Max, 8, cfg.PanelColor)
				return layout.UniformInset(unit.Dp(8)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return label(gtx, unit.Sp(14), text, cfg.TextColor, font.Normal, 3)
				})
			}),
		)
	})
}

func drawCheck(gtx layout.Context, col color.NRGBA) layout.Dimensions {
	size := gtx.Dp(unit.Dp(18))
	paint.FillShape(gtx.Ops, col, clip.Ellipse{Max: image.Pt(size, size)}.Op(gtx.Ops))

	s := float32(size)
	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(s*0.25, s*0.5))
	path.LineTo(f32.Pt(s*0.42, s*0.7))
	path.LineTo(f32.Pt(s*0.75, s*0.3))
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	paint.FillShape(gtx.Ops, white, clip.Stroke{Path: path.End(), Width: float32(gtx.Dp(unit.Dp(2)))}.Op())
	return layout.Dimensions{Size: image.Pt(size, size)}
}
