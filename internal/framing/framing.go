// Package framing implements the length-delimited record framing shared by
// the handshake and the encrypted codec. Every record on the wire is a
// 4-byte big-endian length prefix followed by that many payload bytes.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxRecordSize is the largest payload a single record may carry (16 MiB).
const MaxRecordSize = 16 * 1024 * 1024

// LengthPrefixSize is the size of the length prefix, in bytes.
const LengthPrefixSize = 4

var (
	// ErrRecordTooLarge is returned when a record's declared length exceeds MaxRecordSize.
	ErrRecordTooLarge = errors.New("framing: record exceeds maximum size")

	// ErrShortRead is returned when the stream ends before a full record is read.
	ErrShortRead = errors.New("framing: short read")
)

// Reader reads length-delimited records from an io.Reader.
type Reader struct {
	r      io.Reader
	prefix [LengthPrefixSize]byte
}

// NewReader wraps r in a record Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadRecord reads the next record's payload. Any failure to read a full
// prefix or payload (including EOF before the next record) surfaces as
// ErrShortRead, with the underlying io error's text appended; both are
// session-fatal per spec.
func (fr *Reader) ReadRecord() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.prefix[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
	}

	length := binary.BigEndian.Uint32(fr.prefix[:])
	if length > MaxRecordSize {
		return nil, ErrRecordTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrShortRead, err)
		}
	}

	return payload, nil
}

// Writer writes length-delimited records to an io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w in a record Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRecord writes payload as a single length-delimited record.
func (fw *Writer) WriteRecord(payload []byte) error {
	if len(payload) > MaxRecordSize {
		return ErrRecordTooLarge
	}

	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)

	_, err := fw.w.Write(buf)
	return err
}
