package audio

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// AnalyserConfig controls the frequency-domain energy measurement.
type AnalyserConfig struct {
	FFTSize     int     // window length in samples, power of two
	Smoothing   float64 // time constant in [0,1)
	MinDecibels float64
	MaxDecibels float64
}

// DefaultAnalyserConfig mirrors a browser AnalyserNode with fftSize 256.
func DefaultAnalyserConfig() AnalyserConfig {
	return AnalyserConfig{
		FFTSize:     256,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

// Analyser turns a window of time-domain samples into one energy reading:
// the mean of the byte-scaled, smoothed magnitude spectrum. It keeps
// smoothing state between calls and is not safe for concurrent use.
type Analyser struct {
	cfg      AnalyserConfig
	fft      *fourier.FFT
	window   []float64
	frame    []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyser builds an analyser. Invalid settings fall back to defaults.
func NewAnalyser(cfg AnalyserConfig) *Analyser {
	def := DefaultAnalyserConfig()
	if cfg.FFTSize < 32 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = def.Smoothing
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = def.MinDecibels, def.MaxDecibels
	}

	n := cfg.FFTSize
	window := make([]float64, n)
	for i := range window {
		x := 2 * math.Pi * float64(i) / float64(n)
		window[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}

	return &Analyser{
		cfg:      cfg,
		fft:      fourier.NewFFT(n),
		window:   window,
		frame:    make([]float64, n),
		coeffs:   make([]complex128, n/2+1),
		smoothed: make([]float64, n/2),
	}
}

// Size is the number of time-domain samples consumed per reading.
func (a *Analyser) Size() int {
	return a.cfg.FFTSize
}

// Energy measures the latest window of samples. Short input is treated as
// preceded by silence. The result is in [0,255].
func (a *Analyser) Energy(samples []float64) float64 {
	n := a.cfg.FFTSize
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	pad := n - len(samples)
	for i := 0; i < pad; i++ {
		a.frame[i] = 0
	}
	for i, s := range samples {
		a.frame[pad+i] = s * a.window[pad+i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	tau := a.cfg.Smoothing
	sum := 0.0
	for k := range a.smoothed {
		mag := math.Hypot(real(a.coeffs[k]), imag(a.coeffs[k])) / float64(n)
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag

		v := 0.0
		if a.smoothed[k] > 0 {
			db := 20 * math.Log10(a.smoothed[k])
			v = math.Floor(scale * (db - a.cfg.MinDecibels))
			v = math.Max(0, math.Min(255, v))
		}
		sum += v
	}
	return sum / float64(len(a.smoothed))
}

// Reset clears the smoothing history.
func (a *Analyser) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}
