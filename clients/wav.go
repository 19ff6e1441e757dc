package clients

import (
	"encoding/binary"
	"fmt"
	"io"
	"mime"
	"os"
	"strconv"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// PCMFormat describes raw little-endian integer PCM.
type PCMFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultPCM is what Gemini speech models return: 24 kHz, 16-bit, mono.
var DefaultPCM = PCMFormat{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

func (f PCMFormat) beepFormat() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(f.SampleRate),
		NumChannels: f.Channels,
		Precision:   f.BitsPerSample / 8,
	}
}

// pcmFormatFromMIME reads the rate parameter of types like
// "audio/L16;codec=pcm;rate=24000". Unknown parameters keep the defaults.
func pcmFormatFromMIME(mt string) PCMFormat {
	f := DefaultPCM
	_, params, err := mime.ParseMediaType(mt)
	if err != nil {
		return f
	}
	if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
		f.SampleRate = r
	}
	if c, err := strconv.Atoi(params["channels"]); err == nil && c > 0 {
		f.Channels = c
	}
	return f
}

func isWAV(mt string, data []byte) bool {
	if strings.Contains(mt, "wav") {
		return true
	}
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// pcmStreamer plays back interleaved signed 16-bit PCM. Mono input is
// duplicated onto both beep channels.
type pcmStreamer struct {
	data     []byte
	channels int
	pos      int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frame := 2 * s.channels
	for n < len(samples) && s.pos+frame <= len(s.data) {
		for c := 0; c < 2; c++ {
			off := s.pos + 2*min(c, s.channels-1)
			v := int16(binary.LittleEndian.Uint16(s.data[off:]))
			samples[n][c] = float64(v) / (1 << 15)
		}
		s.pos += frame
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error { return nil }

// WriteWAV encodes raw 16-bit PCM into a WAV container.
func WriteWAV(w io.WriteSeeker, pcm []byte, f PCMFormat) error {
	if f.BitsPerSample != 16 || f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("unsupported pcm format: %d-bit, %d channels", f.BitsPerSample, f.Channels)
	}
	return wav.Encode(w, &pcmStreamer{data: pcm, channels: f.Channels}, f.beepFormat())
}

// saveAudio writes data to path, wrapping it in WAV when it is raw PCM.
func saveAudio(path, mt string, data []byte) error {
	if isWAV(mt, data) {
		return os.WriteFile(path, data, 0o644)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(out, data, pcmFormatFromMIME(mt)); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}
