package pcm

import "time"

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format represents a raw PCM audio format configuration.
type Format int

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio format")
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 1
	}
	panic("pcm: invalid audio format")
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 16
	}
	panic("pcm: invalid audio format")
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels()) / int64(f.Depth())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.Channels()) * int64(f.Depth()) / 8
}

// BytesInMillis returns the number of bytes in the given number of
// milliseconds. For L16Mono16K this is 32 bytes per millisecond, the
// conversion factor behind VAD offset arithmetic.
func (f Format) BytesInMillis(ms int64) int64 {
	return f.BytesInDuration(time.Duration(ms) * time.Millisecond)
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// BitsRate returns the bit rate of the audio data.
func (f Format) BitsRate() int {
	return f.SampleRate() * f.Channels() * f.Depth()
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.BitsRate() / 8
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid audio format")
}
