// Package audio owns the live audio input of a session and turns it into a
// volume history.
package audio

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPermissionDenied  = errors.New("audio input permission denied")
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	ErrNotInitialized    = errors.New("audio input not initialized")
)

// Device is a microphone-like input. Read copies the most recent samples,
// normalized to [-1,1], into the tail of dst and zero-fills the rest; it
// returns the number of real samples copied.
type Device interface {
	Open(ctx context.Context) error
	Read(dst []float64) (int, error)
	Close() error
}

type deviceState int

const (
	deviceCreated deviceState = iota
	deviceOpen
	deviceClosed
)

// StreamDevice is a Device fed by writes of 16-bit little-endian mono PCM.
// It keeps the latest window of samples and forwards the raw bytes to an
// optional tap.
type StreamDevice struct {
	mu     sync.Mutex
	state  deviceState
	ring   []float64
	next   int
	filled int
	carry  []byte
	tap    func([]byte)
	bytes  int64
}

// NewStreamDevice returns a device retaining windowSize samples.
func NewStreamDevice(windowSize int) *StreamDevice {
	if windowSize <= 0 {
		windowSize = DefaultAnalyserConfig().FFTSize
	}
	return &StreamDevice{ring: make([]float64, windowSize)}
}

// SetTap registers fn to receive a copy of every chunk written.
func (d *StreamDevice) SetTap(fn func([]byte)) {
	d.mu.Lock()
	d.tap = fn
	d.mu.Unlock()
}

// Open makes the device writable. Reopening a closed device clears it.
func (d *StreamDevice) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == deviceClosed {
		for i := range d.ring {
			d.ring[i] = 0
		}
		d.next, d.filled, d.carry = 0, 0, nil
	}
	d.state = deviceOpen
	return nil
}

// Write appends PCM bytes. An odd trailing byte is held until the next write.
func (d *StreamDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	switch d.state {
	case deviceCreated:
		d.mu.Unlock()
		return 0, ErrNotInitialized
	case deviceClosed:
		d.mu.Unlock()
		return 0, ErrDeviceUnavailable
	}

	data := p
	if len(d.carry) > 0 {
		data = append(append([]byte(nil), d.carry...), p...)
		d.carry = nil
	}
	if len(data)%2 == 1 {
		d.carry = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	for _, s := range PCM16ToFloat(data) {
		d.ring[d.next] = s
		d.next = (d.next + 1) % len(d.ring)
		if d.filled < len(d.ring) {
			d.filled++
		}
	}
	d.bytes += int64(len(p))
	tap := d.tap
	d.mu.Unlock()

	if tap != nil && len(p) > 0 {
		tap(append([]byte(nil), p...))
	}
	return len(p), nil
}

// Read implements Device.
func (d *StreamDevice) Read(dst []float64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case deviceCreated:
		return 0, ErrNotInitialized
	case deviceClosed:
		return 0, ErrDeviceUnavailable
	}

	n := d.filled
	if n > len(dst) {
		n = len(dst)
	}
	pad := len(dst) - n
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}
	start := (d.next - n + len(d.ring)) % len(d.ring)
	for i := 0; i < n; i++ {
		dst[pad+i] = d.ring[(start+i)%len(d.ring)]
	}
	return n, nil
}

// Close is idempotent.
func (d *StreamDevice) Close() error {
	d.mu.Lock()
	d.state = deviceClosed
	d.mu.Unlock()
	return nil
}

// BytesReceived reports the total number of bytes written since creation.
func (d *StreamDevice) BytesReceived() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bytes
}
