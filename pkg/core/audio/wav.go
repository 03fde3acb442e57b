// Package audio provides the PCM/WAV codec used to package captured
// utterances for transcription, plus small helpers for inspecting raw
// sample buffers.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeWAV packages a mono float sample buffer as a 16-bit PCM WAV blob.
//
// Samples are clamped to [-1, 1] before quantization; negative values scale
// by 0x8000 and positive values by 0x7FFF so both ends of the int16 range
// are reachable without overflow. The function is total: any finite input,
// including an empty buffer, yields a structurally valid container.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return PCMToWAV(pcm, sampleRate, 16, 1)
}

// PCMToWAV wraps raw PCM audio data with a 44-byte WAV header.
func PCMToWAV(pcm []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataLen := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM sub-chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}

// DecodeF32LE converts a little-endian float32 byte stream into samples.
// This is the wire format utterance frames arrive in from the browser.
func DecodeF32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("f32le payload length %d is not a multiple of 4", len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
