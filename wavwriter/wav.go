// Package wavwriter records the console's audio samples and writes them to
// disk as a 16bit mono WAV file. Samples are buffered in memory in their
// entirety and written on Close, so it is only suitable for short captures
// and testing.
package wavwriter

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

const bitDepth = 16

// WavWriter collects float samples in the range [0, 1].
type WavWriter struct {
	filename   string
	sampleRate int
	buffer     []int
}

// New is the preferred method of initialisation for the WavWriter type.
func New(filename string, sampleRate int) (*WavWriter, error) {
	if sampleRate <= 0 {
		return nil, errors.Errorf("wavwriter: invalid sample rate %d", sampleRate)
	}
	return &WavWriter{
		filename:   filename,
		sampleRate: sampleRate,
		buffer:     make([]int, 0),
	}, nil
}

// Write converts and buffers samples. It never fails.
func (aw *WavWriter) Write(samples []float32) {
	for _, s := range samples {
		aw.buffer = append(aw.buffer, toPCM(s))
	}
}

// Len is the number of buffered samples.
func (aw *WavWriter) Len() int {
	return len(aw.buffer)
}

// Close writes the buffered samples to the file.
func (aw *WavWriter) Close() (rerr error) {
	f, err := os.Create(aw.filename)
	if err != nil {
		return errors.Wrap(err, "wavwriter")
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "wavwriter")
		}
	}()

	enc := wav.NewEncoder(f, aw.sampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: aw.sampleRate},
		Data:           aw.buffer,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "wavwriter: encode")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "wavwriter: encode")
	}
	return nil
}

// mixer output sits in [0, 1]; shift it around zero
func toPCM(s float32) int {
	v := int(s*65535) - 32768
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return v
}
