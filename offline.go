package retune

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ProcessBuffer runs an entire interleaved buffer through a fresh engine
// configured by p, block by block, and returns the corrected buffer along
// with the per-block results. The tail block may be shorter than the
// configured buffer size.
func ProcessBuffer(input []float32, p Params) ([]float32, []Result, error) {
	e, err := NewWithParams(p)
	if err != nil {
		return nil, nil, err
	}
	ch := e.params.Channels
	totalFrames := len(input) / ch
	block := e.params.BufferSize

	output := make([]float32, totalFrames*ch)
	results := make([]Result, 0, (totalFrames+block-1)/block)
	for off := 0; off < totalFrames; off += block {
		n := block
		if off+n > totalFrames {
			n = totalFrames - off
		}
		res := e.Process(input[off*ch:(off+n)*ch], output[off*ch:(off+n)*ch], n)
		if !res.Success {
			return nil, nil, fmt.Errorf("retune: block at frame %d failed", off)
		}
		results = append(results, res)
	}
	return output, results, nil
}

// WriteWAV writes samples as a 32-bit float PCM WAV stream.
func WriteWAV(w io.Writer, samples []float32, sampleRate, channels int) error {
	dataSize := len(samples) * 4
	header := make([]byte, 44)
	copy(header[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataSize))
	copy(header[8:], []byte("WAVE"))
	copy(header[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(header[22:], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(header[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(header[34:], 32)
	copy(header[36:], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, s := range samples {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(s))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
