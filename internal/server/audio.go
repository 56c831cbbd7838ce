package server

import "encoding/binary"

// Telephony media streams carry 8 kHz mono G.711 mu-law. The STT provider
// wants a plain WAV clip, so utterance buffers are expanded to 16-bit PCM
// and wrapped in a RIFF header before upload.

const telephonySampleRate = 8000

// muLawToPCM16 expands G.711 mu-law bytes to 16-bit signed little-endian PCM.
func muLawToPCM16(mulaw []byte) []byte {
	pcm := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(muLawDecode(b)))
	}
	return pcm
}

// muLawDecode expands one G.711 mu-law byte to a 16-bit sample.
func muLawDecode(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F

	sample := int16(mantissa)<<3 + 0x84
	sample <<= exponent
	sample -= 0x84

	if sign != 0 {
		return -sample
	}
	return sample
}

// wavFromPCM16 wraps 16-bit mono PCM in a minimal RIFF/WAVE header.
func wavFromPCM16(pcm []byte, sampleRate int) []byte {
	const (
		headerSize    = 44
		fmtChunkSize  = 16
		pcmFormat     = 1
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, headerSize+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[headerSize:], pcm)
	return buf
}
