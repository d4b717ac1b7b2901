// Package wav assembles RIFF/WAVE containers around raw PCM data.
//
// The gateway only ever produces one shape of file: uncompressed PCM,
// described by a pcm.Format. The 44-byte header is a constant template
// with two size fields patched in, so assembly is a header write plus
// the payload segments in order. A minimal parser is provided for
// verification and tooling.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/earshot/earshot/pkg/audio/pcm"
)

// HeaderSize is the size of the canonical PCM WAV header in bytes.
const HeaderSize = 44

// ErrMalformed is returned by Parse when the input is not a PCM WAV
// file this package understands.
var ErrMalformed = errors.New("wav: malformed file")

// AppendHeader appends the 44-byte RIFF/WAVE header for dataSize bytes
// of PCM in format f to dst and returns the extended slice.
func AppendHeader(dst []byte, f pcm.Format, dataSize int) []byte {
	le := binary.LittleEndian

	var hdr [HeaderSize]byte
	copy(hdr[0:4], "RIFF")
	le.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	le.PutUint32(hdr[16:20], 16) // fmt chunk size
	le.PutUint16(hdr[20:22], 1)  // PCM
	le.PutUint16(hdr[22:24], uint16(f.Channels()))
	le.PutUint32(hdr[24:28], uint32(f.SampleRate()))
	le.PutUint32(hdr[28:32], uint32(f.BytesRate()))
	le.PutUint16(hdr[32:34], uint16(f.Channels()*f.Depth()/8))
	le.PutUint16(hdr[34:36], uint16(f.Depth()))
	copy(hdr[36:40], "data")
	le.PutUint32(hdr[40:44], uint32(dataSize))

	return append(dst, hdr[:]...)
}

// Encode concatenates the PCM segments in order and prepends the WAV
// header for format f. Segments are assumed to be little-endian 16-bit
// PCM already; no conversion is performed.
func Encode(f pcm.Format, segments [][]byte) []byte {
	dataSize := 0
	for _, seg := range segments {
		dataSize += len(seg)
	}
	out := make([]byte, 0, HeaderSize+dataSize)
	out = AppendHeader(out, f, dataSize)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return out
}

// EncodeBytes is Encode for a single contiguous PCM buffer.
func EncodeBytes(f pcm.Format, data []byte) []byte {
	return Encode(f, [][]byte{data})
}

// Info describes a parsed PCM WAV file.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Parse reads the header of b and returns the format description and
// the PCM payload. Only the canonical 44-byte PCM layout produced by
// Encode is accepted.
func Parse(b []byte) (Info, []byte, error) {
	if len(b) < HeaderSize {
		return Info{}, nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[12:16]) != "fmt " {
		return Info{}, nil, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	le := binary.LittleEndian
	if le.Uint16(b[20:22]) != 1 {
		return Info{}, nil, fmt.Errorf("%w: not PCM", ErrMalformed)
	}
	if string(b[36:40]) != "data" {
		return Info{}, nil, fmt.Errorf("%w: missing data chunk", ErrMalformed)
	}
	info := Info{
		SampleRate:    int(le.Uint32(b[24:28])),
		Channels:      int(le.Uint16(b[22:24])),
		BitsPerSample: int(le.Uint16(b[34:36])),
	}
	dataSize := int(le.Uint32(b[40:44]))
	if HeaderSize+dataSize > len(b) {
		return Info{}, nil, fmt.Errorf("%w: data size %d exceeds file", ErrMalformed, dataSize)
	}
	return info, b[HeaderSize : HeaderSize+dataSize], nil
}
