package message

import (
	"encoding/binary"
	"fmt"
)

// wireBuffer is a small append-only encoder used by every message body.
// Strings are uint16-length-prefixed UTF-8; byte blobs are
// uint32-length-prefixed. Field order is fixed per spec.md §3.
type wireBuffer struct {
	buf []byte
}

func (w *wireBuffer) putString(s string) {
	w.putBytes16([]byte(s))
}

func (w *wireBuffer) putBytes16(b []byte) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	w.buf = append(w.buf, l[:]...)
	w.buf = append(w.buf, b...)
}

func (w *wireBuffer) putBytes32(b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	w.buf = append(w.buf, l[:]...)
	w.buf = append(w.buf, b...)
}

func (w *wireBuffer) putFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *wireBuffer) putByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *wireBuffer) putBool(v bool) {
	if v {
		w.putByte(1)
	} else {
		w.putByte(0)
	}
}

func (w *wireBuffer) bytes() []byte {
	return w.buf
}

// wireReader decodes fields written by wireBuffer, in the same order.
type wireReader struct {
	buf []byte
	off int
}

func newWireReader(buf []byte) *wireReader {
	return &wireReader{buf: buf}
}

func (r *wireReader) getString() (string, error) {
	b, err := r.getBytes16()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *wireReader) getBytes16() ([]byte, error) {
	if r.off+2 > len(r.buf) {
		return nil, fmt.Errorf("message: truncated length prefix at offset %d", r.off)
	}
	l := int(binary.BigEndian.Uint16(r.buf[r.off:]))
	r.off += 2
	return r.getFixed(l)
}

func (r *wireReader) getBytes32() ([]byte, error) {
	if r.off+4 > len(r.buf) {
		return nil, fmt.Errorf("message: truncated length prefix at offset %d", r.off)
	}
	l := int(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return r.getFixed(l)
}

func (r *wireReader) getFixed(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, fmt.Errorf("message: truncated field, want %d bytes at offset %d", n, r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *wireReader) getByte() (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, fmt.Errorf("message: truncated byte at offset %d", r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *wireReader) getBool() (bool, error) {
	b, err := r.getByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
