// Package wire implements the relaychat control-channel framing and the
// bulk byte streams used for file payloads.
//
// Two framings share one TCP socket sequentially:
//
//   - Framed messages: a 4-byte big-endian unsigned length followed by
//     exactly that many bytes of UTF-8 payload. A zero length is a permitted
//     empty ping; the decoder reports it without consuming further bytes.
//
//   - Bulk streams: a 4-byte big-endian size followed by raw file bytes,
//     used only immediately after a FILE_UPLOAD_REQUEST or FILE_DOWNLOAD
//     header message. Entering bulk mode is an explicit codec operation so
//     the handoff is a type-level contract, not a convention.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxFrameSize bounds a single control frame. Frames at or above this
	// size are a fatal framing violation.
	MaxFrameSize = 4096

	// MaxBulkSize is the largest file payload accepted on a bulk stream (3 MiB).
	MaxBulkSize = 3 * 1024 * 1024

	// ChunkSize is the unit in which bulk payload bytes move through the socket.
	ChunkSize = 4096
)

var (
	// ErrFrameTooLarge reports a control frame whose declared length meets or
	// exceeds the decoder's buffer. The connection is unrecoverable afterwards
	// because the remainder of the stream cannot be resynchronized.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

	// ErrBulkTooLarge reports a bulk stream whose declared size exceeds
	// MaxBulkSize. The declared bytes have not been consumed.
	ErrBulkTooLarge = errors.New("wire: bulk payload exceeds maximum size")
)

// ReadFrame reads one length-prefixed control frame from r.
//
// A zero-length frame returns (nil, nil): an empty ping that callers treat
// as a no-op. A declared length >= max returns ErrFrameTooLarge. Short reads
// are retried to completion by io.ReadFull; io.EOF before the length prefix
// means the peer closed the connection cleanly.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, nil
	}
	if int64(length) >= int64(max) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, length, max)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed control frame to w. The write is a
// single buffer handed to one Write call, so a frame is never interleaved
// with another writer that serializes on the same mutex.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// WriteString frames and writes a UTF-8 string.
func WriteString(w io.Writer, s string) error {
	return WriteFrame(w, []byte(s))
}

// ReadBulk reads a size-prefixed raw byte stream from r: the counterpart of
// WriteBulk, entered only after a FILE_UPLOAD_REQUEST header. A declared
// size above max fails with ErrBulkTooLarge before any payload bytes are
// consumed, leaving the oversized stream on the socket; the session is
// unrecoverable and must close.
func ReadBulk(r io.Reader, max int) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("reading bulk size: %w", err)
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if int64(size) > int64(max) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrBulkTooLarge, size, max)
	}

	payload := make([]byte, size)
	remaining := payload
	for len(remaining) > 0 {
		chunk := remaining
		if len(chunk) > ChunkSize {
			chunk = chunk[:ChunkSize]
		}
		n, err := io.ReadFull(r, chunk)
		remaining = remaining[n:]
		if err != nil {
			return nil, fmt.Errorf("reading bulk payload: %w", err)
		}
	}
	return payload, nil
}

// WriteBulk writes a size-prefixed raw byte stream to w, chunked at
// ChunkSize. Used only immediately after a FILE_DOWNLOAD header.
func WriteBulk(w io.Writer, payload []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("writing bulk size: %w", err)
	}

	for off := 0; off < len(payload); off += ChunkSize {
		end := off + ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		if _, err := w.Write(payload[off:end]); err != nil {
			return fmt.Errorf("writing bulk payload: %w", err)
		}
	}
	return nil
}
