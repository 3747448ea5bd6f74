// Package wav decodes RIFF/WAVE containers into normalized sample data.
//
// Only uncompressed linear PCM with 8-bit unsigned or 16-bit signed samples is
// supported; everything the speech backend returns falls into those two
// encodings. Decode is a pure function and safe to call concurrently for
// independent buffers.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel errors returned by Decode.
var (
	// ErrUnsupportedFormat is returned for non-RIFF buffers, non-PCM
	// encodings, and sample widths other than 8 or 16 bits.
	ErrUnsupportedFormat = errors.New("wav: unsupported format")

	// ErrTruncated is returned when a declared chunk size reads past the
	// end of the buffer.
	ErrTruncated = errors.New("wav: truncated container")

	// ErrNoDataSection is returned when the container has no data chunk.
	ErrNoDataSection = errors.New("wav: no data section")
)

// PCM is a decoded audio buffer with samples normalized to [-1.0, 1.0].
// Samples are interleaved per channel in container order.
type PCM struct {
	Channels   int
	SampleRate int
	Samples    []float64
}

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8

	// fmtPCM is the format tag for uncompressed linear PCM.
	fmtPCM = 1
)

// Decode parses a RIFF/WAVE buffer into normalized sample data.
//
// Chunks are located by linearly scanning the tagged, length-prefixed
// sections after the RIFF header; unrecognized chunks are skipped by their
// declared length, so the fmt and data chunks need not be contiguous.
func Decode(data []byte) (*PCM, error) {
	if len(data) < riffHeaderSize {
		return nil, fmt.Errorf("%w: %d byte buffer", ErrTruncated, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE container", ErrUnsupportedFormat)
	}

	var (
		haveFmt       bool
		channels      int
		sampleRate    int
		bitsPerSample int
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(data) {
		tag := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("%w: chunk %q declares %d bytes past buffer end", ErrTruncated, tag, size)
		}

		switch tag {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk is %d bytes", ErrTruncated, size)
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			if format != fmtPCM {
				return nil, fmt.Errorf("%w: format tag %d, want linear PCM", ErrUnsupportedFormat, format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if bitsPerSample != 8 && bitsPerSample != 16 {
				return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitsPerSample)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedFormat)
			}
			samples, err := normalize(data[body:body+size], bitsPerSample)
			if err != nil {
				return nil, err
			}
			return &PCM{
				Channels:   channels,
				SampleRate: sampleRate,
				Samples:    samples,
			}, nil
		}

		// Skip unrecognized chunks by their declared length.
		offset = body + size
	}

	return nil, ErrNoDataSection
}

// normalize converts raw sample bytes to float64 in [-1.0, 1.0].
func normalize(raw []byte, bitsPerSample int) ([]float64, error) {
	switch bitsPerSample {
	case 8:
		samples := make([]float64, len(raw))
		for i, b := range raw {
			samples[i] = (float64(b) - 128) / 128
		}
		return samples, nil

	case 16:
		samples := make([]float64, len(raw)/2)
		for i := range samples {
			v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			samples[i] = float64(v) / 32768
		}
		return samples, nil

	default:
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitsPerSample)
	}
}
