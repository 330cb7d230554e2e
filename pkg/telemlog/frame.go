package telemlog

import (
	"bytes"
	"fmt"
)

// On-disk frame layout: a 6-byte header magic, exactly recordSize payload
// bytes, and a 4-byte footer magic. The total size is constant per module,
// which is what lets the reader walk a file backward by pure arithmetic.
const (
	headerSize = 6
	footerSize = 4

	// FrameOverhead is the number of delimiter bytes around each record.
	FrameOverhead = headerSize + footerSize
)

var (
	frameHeader = [headerSize]byte{'F', 'B', 'E', 'G', 'I', 'N'}
	frameFooter = [footerSize]byte{'F', 'E', 'N', 'D'}
)

// encodeFrame appends one frame to dst and returns the extended slice.
// Payloads shorter than recordSize are left-justified and zero-padded.
func encodeFrame(dst, payload []byte, recordSize int) []byte {
	dst = append(dst, frameHeader[:]...)
	dst = append(dst, payload...)
	for n := recordSize - len(payload); n > 0; n-- {
		dst = append(dst, 0)
	}
	return append(dst, frameFooter[:]...)
}

// decodeFrame validates the delimiters of a single frame and returns a copy
// of its payload. The input must be exactly one frame long.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < FrameOverhead {
		return nil, fmt.Errorf("%w: truncated frame of %d bytes", ErrCorruption, len(frame))
	}
	if !bytes.Equal(frame[:headerSize], frameHeader[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorruption)
	}
	if !bytes.Equal(frame[len(frame)-footerSize:], frameFooter[:]) {
		return nil, fmt.Errorf("%w: bad footer", ErrCorruption)
	}
	payload := make([]byte, len(frame)-FrameOverhead)
	copy(payload, frame[headerSize:len(frame)-footerSize])
	return payload, nil
}
