// Package wav читает и пишет PCM16 mono: WAV и сырой little-endian.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnsupported возвращается для WAV, который нельзя подать в модель как есть.
var ErrUnsupported = errors.New("wav: unsupported format")

// Clip - аудио в PCM16 mono.
type Clip struct {
	Samples []int16
	// SampleRate - 0 для сырого PCM, частота которого неизвестна.
	SampleRate int
}

// Seconds возвращает длительность клипа; rate используется, если своей частоты нет.
func (c Clip) Seconds(rate int) float64 {
	if c.SampleRate > 0 {
		rate = c.SampleRate
	}
	if rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(rate)
}

// ReadFile читает WAV (PCM 16 bit mono) или сырой PCM16 little-endian.
// Формат определяется по заголовку RIFF/WAVE.
func ReadFile(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, err
	}
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return Decode(data)
	}
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		return Clip{}, fmt.Errorf("%w: %s has no RIFF/WAVE header", ErrUnsupported, path)
	}
	return DecodePCM16LE(data)
}

// DecodePCM16LE декодирует сырой PCM16 little-endian.
func DecodePCM16LE(data []byte) (Clip, error) {
	if len(data)%2 != 0 {
		return Clip{}, fmt.Errorf("wav: odd number of bytes (%d) in PCM16 data", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return Clip{Samples: samples}, nil
}

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Decode разбирает RIFF/WAVE. Поддерживается только PCM 16 bit mono.
func Decode(data []byte) (Clip, error) {
	r := bytes.NewReader(data)

	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Clip{}, fmt.Errorf("%w: short header", ErrUnsupported)
	}

	var (
		format  wavFormat
		haveFmt bool
	)
	for {
		var id [4]byte
		var size uint32
		if _, err := io.ReadFull(r, id[:]); err != nil {
			return Clip{}, fmt.Errorf("%w: no data chunk", ErrUnsupported)
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return Clip{}, fmt.Errorf("%w: truncated chunk %q", ErrUnsupported, id[:])
		}

		switch string(id[:]) {
		case "fmt ":
			if size < 16 {
				return Clip{}, fmt.Errorf("%w: fmt chunk too short", ErrUnsupported)
			}
			if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
				return Clip{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
			}
			if _, err := r.Seek(int64(size-16+size%2), io.SeekCurrent); err != nil {
				return Clip{}, err
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("%w: data before fmt", ErrUnsupported)
			}
			if format.AudioFormat != 1 || format.BitsPerSample != 16 || format.Channels != 1 {
				return Clip{}, fmt.Errorf("%w: format=%d channels=%d bits=%d (need PCM, 1 channel, 16 bit)",
					ErrUnsupported, format.AudioFormat, format.Channels, format.BitsPerSample)
			}
			if int64(size) > int64(r.Len()) {
				size = uint32(r.Len())
			}
			pcm := make([]byte, size&^1)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return Clip{}, err
			}
			clip, err := DecodePCM16LE(pcm)
			if err != nil {
				return Clip{}, err
			}
			clip.SampleRate = int(format.SampleRate)
			return clip, nil

		default:
			if _, err := r.Seek(int64(size+size%2), io.SeekCurrent); err != nil {
				return Clip{}, err
			}
		}
	}
}

// Encode упаковывает PCM16 mono в WAV.
func Encode(samples []int16, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataLen := len(samples) * 2

	buf := &bytes.Buffer{}
	_, _ = buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	_, _ = buf.WriteString("WAVE")
	_, _ = buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	_, _ = buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	_ = binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
