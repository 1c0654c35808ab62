package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidWAV is returned for data that is not 16-bit mono PCM WAV.
var ErrInvalidWAV = errors.New("invalid WAV data")

const (
	wavHeaderSize = 44
	pcmFormat     = 1
)

// WAVInfo describes a decoded WAV file.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

// Duration returns the playback length in seconds.
func (w WAVInfo) Duration() float64 {
	if w.SampleRate == 0 || w.Channels == 0 || w.BitsPerSample == 0 {
		return 0
	}
	return float64(w.DataSize) / float64(w.SampleRate*w.Channels*w.BitsPerSample/8)
}

// DecodeWAV walks the RIFF chunks of data and returns the raw PCM payload.
// Only 16-bit mono PCM is accepted.
func DecodeWAV(data []byte) (WAVInfo, []byte, error) {
	var info WAVInfo
	if len(data) < wavHeaderSize {
		return info, nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidWAV, wavHeaderSize, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		fmtFound bool
		pcm      []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return info, nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			chunk := data[body:end]
			if format := binary.LittleEndian.Uint16(chunk[0:2]); format != pcmFormat {
				return info, nil, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidWAV, format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))
			fmtFound = true
		case "data":
			pcm = data[body:end]
		}

		// chunks are word aligned
		off = body + size + size%2
	}

	if !fmtFound {
		return info, nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}
	if pcm == nil {
		return info, nil, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
	}
	if info.BitsPerSample != 16 {
		return info, nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, info.BitsPerSample)
	}
	if info.Channels != 1 {
		return info, nil, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidWAV, info.Channels)
	}
	if info.SampleRate <= 0 {
		return info, nil, fmt.Errorf("%w: invalid sample rate %d", ErrInvalidWAV, info.SampleRate)
	}
	info.DataSize = len(pcm)
	return info, pcm, nil
}

// EncodeWAV wraps 16-bit mono samples in a canonical 44-byte WAV header.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := uint32(len(samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(pcmFormat))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	_ = binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

// PCM16ToFloat converts little-endian 16-bit PCM to samples in [-1,1). A
// trailing odd byte is ignored.
func PCM16ToFloat(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/2)
	for i := range out {
		out[i] = float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
	}
	return out
}
