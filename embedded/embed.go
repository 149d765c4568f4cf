// Package embedded содержит иконки трея. Файлы создаются скриптом
// scripts/generate_icons.go.
package embedded

import (
	_ "embed"
)

// IconIdle - диктовка выключена.
//
//go:embed icon_idle.png
var IconIdle []byte

// IconRecording - идёт запись.
//
//go:embed icon_recording.png
var IconRecording []byte

// IconProcessing - запись остановлена, ждём финальный результат.
//
//go:embed icon_processing.png
var IconProcessing []byte
