// Package audio_test tests WAV parsing and assembly.
package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/book-expert/audiobook-service/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 8000
	testChannels   = 1
	testBitDepth   = 16
)

// makeWAV builds a minimal PCM WAV file with the given number of sample
// frames, all set to a constant value so assembled output can be inspected.
func makeWAV(t *testing.T, frames int, sample int16) []byte {
	t.Helper()

	blockAlign := testChannels * testBitDepth / 8
	byteRate := testSampleRate * blockAlign
	dataSize := frames * blockAlign

	var buf bytes.Buffer

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(testChannels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(testSampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(testBitDepth))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	for range frames {
		_ = binary.Write(&buf, binary.LittleEndian, sample)
	}

	return buf.Bytes()
}

func TestAssemble_ZeroSegments(t *testing.T) {
	t.Parallel()

	_, err := audio.Assemble(nil, 100*time.Millisecond)
	require.ErrorIs(t, err, audio.ErrNoSegments)
}

func TestAssemble_SingleSegment(t *testing.T) {
	t.Parallel()

	segment := makeWAV(t, testSampleRate, 7) // exactly one second

	narration, err := audio.Assemble([][]byte{segment}, 100*time.Millisecond)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, narration.Duration, 1e-9,
		"single segment must carry no gap")
	assert.Equal(t, testSampleRate, narration.Format.SampleRate)
	assert.Equal(t, testChannels, narration.Format.Channels)
}

func TestAssemble_DurationAdditivity(t *testing.T) {
	t.Parallel()

	const gap = 100 * time.Millisecond

	// Durations: 0.5s, 1.0s, 0.25s. Expected: 1.75 + 2*0.1 = 1.95s.
	segments := [][]byte{
		makeWAV(t, testSampleRate/2, 1),
		makeWAV(t, testSampleRate, 2),
		makeWAV(t, testSampleRate/4, 3),
	}

	narration, err := audio.Assemble(segments, gap)
	require.NoError(t, err)

	expected := 0.5 + 1.0 + 0.25 + 2*gap.Seconds()
	assert.InDelta(t, expected, narration.Duration, 1e-9)
	assert.Equal(t, int64(len(narration.Data)), narration.Size())
}

func TestAssemble_OrderingAndSilence(t *testing.T) {
	t.Parallel()

	segments := [][]byte{
		makeWAV(t, 4, 111),
		makeWAV(t, 4, 222),
	}

	narration, err := audio.Assemble(segments, time.Second/testSampleRate*2)
	require.NoError(t, err)

	// Re-parse the assembled output through Assemble itself: a valid WAV
	// round-trips with identical duration and no added gap.
	again, err := audio.Assemble([][]byte{narration.Data}, 0)
	require.NoError(t, err)
	assert.InDelta(t, narration.Duration, again.Duration, 1e-9)

	// Sample data: 4 frames of 111, 2 frames of silence, 4 frames of 222.
	samples := narration.Data[44:]
	require.Len(t, samples, (4+2+4)*2)

	first := int16(binary.LittleEndian.Uint16(samples[0:2]))
	silent := int16(binary.LittleEndian.Uint16(samples[8:10]))
	last := int16(binary.LittleEndian.Uint16(samples[len(samples)-2:]))

	assert.Equal(t, int16(111), first)
	assert.Equal(t, int16(0), silent)
	assert.Equal(t, int16(222), last)
}

func TestAssemble_RejectsMismatchedFormats(t *testing.T) {
	t.Parallel()

	stereo := makeWAV(t, 4, 1)
	// Patch the channel count of the second segment to 2.
	binary.LittleEndian.PutUint16(stereo[22:24], 2)

	_, err := audio.Assemble([][]byte{makeWAV(t, 4, 1), stereo}, 0)
	require.ErrorIs(t, err, audio.ErrFormatMismatch)
}

func TestAssemble_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := audio.Assemble([][]byte{[]byte("not audio at all")}, 0)
	require.ErrorIs(t, err, audio.ErrNotWAV)
}
