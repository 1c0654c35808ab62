package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FileConfig describes a recorded input played back as a live device.
type FileConfig struct {
	Path          string
	SampleRateHz  int           // used for raw PCM files without a WAV header
	WindowSize    int           // samples retained for the analyser
	ChunkInterval time.Duration // playback granularity
}

// FileDevice replays a WAV or raw PCM file at real-time pace.
type FileDevice struct {
	cfg    FileConfig
	clock  clockwork.Clock
	stream *StreamDevice

	mu     sync.Mutex
	info   WAVInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFileDevice returns a device that reads cfg.Path on Open.
func NewFileDevice(cfg FileConfig, clock clockwork.Clock) *FileDevice {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = 20 * time.Millisecond
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 16000
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FileDevice{
		cfg:    cfg,
		clock:  clock,
		stream: NewStreamDevice(cfg.WindowSize),
	}
}

// SetTap forwards the played-back PCM to fn.
func (d *FileDevice) SetTap(fn func([]byte)) {
	d.stream.SetTap(fn)
}

// Info returns the format of the opened file.
func (d *FileDevice) Info() WAVInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info
}

// Open loads the file and starts playback.
func (d *FileDevice) Open(ctx context.Context) error {
	data, err := os.ReadFile(d.cfg.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, d.cfg.Path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, d.cfg.Path)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	info := WAVInfo{SampleRate: d.cfg.SampleRateHz, Channels: 1, BitsPerSample: 16, DataSize: len(data)}
	pcm := data
	if len(data) >= 4 && string(data[0:4]) == "RIFF" {
		info, pcm, err = DecodeWAV(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
	}

	if err := d.stream.Open(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return nil
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	d.info = info
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.pump(pumpCtx, pcm, info.SampleRate, d.done)
	return nil
}

func (d *FileDevice) pump(ctx context.Context, pcm []byte, sampleRate int, done chan struct{}) {
	defer close(done)

	chunk := int(int64(sampleRate) * int64(d.cfg.ChunkInterval) / int64(time.Second))
	chunk *= 2
	if chunk < 2 {
		chunk = 2
	}

	ticker := d.clock.NewTicker(d.cfg.ChunkInterval)
	defer ticker.Stop()

	for off := 0; off < len(pcm); {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		if _, err := d.stream.Write(pcm[off:end]); err != nil {
			return
		}
		off = end
	}

	// trailing silence so readers see the input go quiet
	_, _ = d.stream.Write(make([]byte, 2*len(d.stream.ring)))
}

// Read implements Device.
func (d *FileDevice) Read(dst []float64) (int, error) {
	return d.stream.Read(dst)
}

// Close stops playback. It is idempotent.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return d.stream.Close()
}
