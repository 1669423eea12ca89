// Package audio provides WAV parsing and assembly for the synthesis
// pipeline.
//
// The assembler concatenates the ordered per-chunk audio segments produced
// by a synthesis backend into a single WAV artifact, inserting a short
// silence gap between consecutive segments to avoid audible clipping.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// WAV container constants.
const (
	riffChunkID   = "RIFF"
	waveFormatID  = "WAVE"
	fmtChunkID    = "fmt "
	dataChunkID   = "data"
	pcmFormatCode = 1

	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkSize    = 16
	bitsPerByte     = 8
)

// FormatWAV is the format tag recorded on completed job records.
const FormatWAV = "wav"

// Static errors.
var (
	// ErrNoSegments indicates that assembly was attempted with zero segments.
	ErrNoSegments = errors.New("no audio segments to assemble")
	// ErrNotWAV indicates that a segment is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("segment is not a WAV file")
	// ErrNotPCM indicates that a segment uses a non-PCM encoding.
	ErrNotPCM = errors.New("segment is not PCM encoded")
	// ErrTruncated indicates that a segment ends before its declared chunks.
	ErrTruncated = errors.New("segment is truncated")
	// ErrFormatMismatch indicates segments with differing sample formats.
	ErrFormatMismatch = errors.New("segments have mismatched sample formats")
)

// Format describes the PCM sample format of a WAV stream.
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// blockAlign returns the size in bytes of one sample frame.
func (f Format) blockAlign() int {
	return f.Channels * f.BitsPerSample / bitsPerByte
}

// byteRate returns the number of sample bytes per second.
func (f Format) byteRate() int {
	return f.SampleRate * f.blockAlign()
}

// Narration is the assembled single-file output of one pipeline run.
type Narration struct {
	// Data is the complete WAV file, header included.
	Data []byte
	// Duration is the exact playback length in seconds.
	Duration float64
	// Format is the sample format shared by all input segments.
	Format Format
}

// Size returns the artifact size in bytes.
func (n *Narration) Size() int64 {
	return int64(len(n.Data))
}

// Assemble concatenates WAV segments in input order, inserting gap worth
// of silence between consecutive segments. All segments must share one
// sample format. The assembled duration is exactly the sum of the segment
// durations plus (n-1) times the gap.
func Assemble(segments [][]byte, gap time.Duration) (*Narration, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	first, firstSamples, err := parseWAV(segments[0])
	if err != nil {
		return nil, fmt.Errorf("segment 1: %w", err)
	}

	silence := make([]byte, silenceBytes(first, gap))

	var samples bytes.Buffer

	samples.Write(firstSamples)

	for i, segment := range segments[1:] {
		format, segmentSamples, parseErr := parseWAV(segment)
		if parseErr != nil {
			return nil, fmt.Errorf("segment %d: %w", i+2, parseErr)
		}

		if format != first {
			return nil, fmt.Errorf("%w: segment %d has %+v, expected %+v",
				ErrFormatMismatch, i+2, format, first)
		}

		samples.Write(silence)
		samples.Write(segmentSamples)
	}

	data := encodeWAV(first, samples.Bytes())
	duration := float64(samples.Len()) / float64(first.byteRate())

	return &Narration{
		Data:     data,
		Duration: duration,
		Format:   first,
	}, nil
}

// silenceBytes returns the byte length of one gap of silence, aligned to
// whole sample frames.
func silenceBytes(format Format, gap time.Duration) int {
	frames := int(gap.Seconds() * float64(format.SampleRate))

	return frames * format.blockAlign()
}

// parseWAV walks the RIFF chunk list of a WAV file and returns its sample
// format and raw PCM sample data.
func parseWAV(data []byte) (Format, []byte, error) {
	if len(data) < riffHeaderSize ||
		string(data[0:4]) != riffChunkID ||
		string(data[8:12]) != waveFormatID {
		return Format{}, nil, ErrNotWAV
	}

	var (
		format     Format
		haveFormat bool
	)

	offset := riffHeaderSize

	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		if body+chunkSize > len(data) {
			return Format{}, nil, ErrTruncated
		}

		switch chunkID {
		case fmtChunkID:
			if chunkSize < fmtChunkSize {
				return Format{}, nil, ErrTruncated
			}

			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != pcmFormatCode {
				return Format{}, nil, fmt.Errorf("%w: format code %d", ErrNotPCM, audioFormat)
			}

			format = Format{
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			haveFormat = true
		case dataChunkID:
			if !haveFormat {
				return Format{}, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}

			return format, data[body : body+chunkSize], nil
		}

		// Chunks are word-aligned; odd sizes carry a pad byte.
		offset = body + chunkSize + chunkSize%2
	}

	return Format{}, nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// encodeWAV builds a complete single data-chunk WAV file around the given
// PCM sample bytes.
func encodeWAV(format Format, samples []byte) []byte {
	var buf bytes.Buffer

	dataSize := len(samples)
	riffSize := 4 + (chunkHeaderSize + fmtChunkSize) + (chunkHeaderSize + dataSize)

	buf.WriteString(riffChunkID)
	writeUint32(&buf, uint32(riffSize))
	buf.WriteString(waveFormatID)

	buf.WriteString(fmtChunkID)
	writeUint32(&buf, fmtChunkSize)
	writeUint16(&buf, pcmFormatCode)
	writeUint16(&buf, uint16(format.Channels))
	writeUint32(&buf, uint32(format.SampleRate))
	writeUint32(&buf, uint32(format.byteRate()))
	writeUint16(&buf, uint16(format.blockAlign()))
	writeUint16(&buf, uint16(format.BitsPerSample))

	buf.WriteString(dataChunkID)
	writeUint32(&buf, uint32(dataSize))
	buf.Write(samples)

	return buf.Bytes()
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte

	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte

	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
