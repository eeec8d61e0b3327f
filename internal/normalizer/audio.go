package normalizer

import (
	"encoding/binary"
	"fmt"
	"time"
)

// wavAudio is decoded 16-bit PCM audio ready for resampling.
type wavAudio struct {
	sampleRate int
	channels   int
	samples    []int16 // interleaved
}

// duration returns the playback length of the decoded audio.
func (w *wavAudio) duration() time.Duration {
	if w.sampleRate == 0 || w.channels == 0 {
		return 0
	}
	frames := len(w.samples) / w.channels
	return time.Duration(frames) * time.Second / time.Duration(w.sampleRate)
}

// decodeWAV parses a RIFF/WAVE container holding 16-bit PCM.
func decodeWAV(payload []byte) (*wavAudio, error) {
	if len(payload) < 44 || string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		data          []byte
	)

	// Walk the chunk list; fmt and data are the only chunks used.
	offset := 12
	for offset+8 <= len(payload) {
		id := string(payload[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(payload[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(payload) {
			size = len(payload) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(payload[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported WAV encoding %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(payload[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(payload[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(payload[body+14 : body+16]))
		case "data":
			data = payload[body : body+size]
		}
		// Chunks are word-aligned.
		offset = body + size + (size & 1)
	}

	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported sample width %d bits, want 16", bitsPerSample)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("missing data chunk")
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return &wavAudio{sampleRate: sampleRate, channels: channels, samples: samples}, nil
}

// truncate cuts the audio to at most max, reporting whether anything was cut.
func (w *wavAudio) truncate(max time.Duration) bool {
	if max <= 0 || w.duration() <= max {
		return false
	}
	frames := int(max.Seconds() * float64(w.sampleRate))
	w.samples = w.samples[:frames*w.channels]
	return true
}

// downmixResample converts the audio to mono at the target rate using
// linear interpolation, which is plenty for speech.
func (w *wavAudio) downmixResample(targetRate int) *wavAudio {
	frames := len(w.samples) / w.channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var acc int
		for c := 0; c < w.channels; c++ {
			acc += int(w.samples[i*w.channels+c])
		}
		mono[i] = int16(acc / w.channels)
	}

	if targetRate <= 0 || targetRate == w.sampleRate || frames == 0 {
		return &wavAudio{sampleRate: w.sampleRate, channels: 1, samples: mono}
	}

	outFrames := int(float64(frames) * float64(targetRate) / float64(w.sampleRate))
	out := make([]int16, outFrames)
	step := float64(w.sampleRate) / float64(targetRate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		j := int(pos)
		if j >= frames-1 {
			out[i] = mono[frames-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(mono[j])*(1-frac) + float64(mono[j+1])*frac)
	}
	return &wavAudio{sampleRate: targetRate, channels: 1, samples: out}
}

// encodeWAV writes the audio back into a minimal RIFF/WAVE container.
func (w *wavAudio) encodeWAV() []byte {
	dataLen := len(w.samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(w.sampleRate))
	byteRate := w.sampleRate * w.channels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(w.channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i, s := range w.samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}
	return buf
}
