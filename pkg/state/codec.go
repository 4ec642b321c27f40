package state

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes values for a Store.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

const (
	markerPlain byte = 0
	markerGzip  byte = 1
)

// MsgPackCodec encodes with MessagePack and gzips payloads above a
// threshold. Uploaded documents make drafts large, so compression is on by
// default.
type MsgPackCodec struct {
	Compress  bool
	Threshold int
}

// NewMsgPackCodec returns a codec that compresses payloads of 4KB or more.
func NewMsgPackCodec() *MsgPackCodec {
	return &MsgPackCodec{Compress: true, Threshold: 4 << 10}
}

func (c *MsgPackCodec) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("state: encode: %w", err)
	}

	if c.Compress && len(data) >= c.Threshold {
		var buf bytes.Buffer
		buf.WriteByte(markerGzip)
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err == nil && gz.Close() == nil {
			return buf.Bytes(), nil
		}
	}

	return append([]byte{markerPlain}, data...), nil
}

func (c *MsgPackCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrInvalidData
	}

	payload := data[1:]
	switch data[0] {
	case markerPlain:
	case markerGzip:
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		defer gz.Close()
		if payload, err = io.ReadAll(gz); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	default:
		return ErrInvalidData
	}

	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("state: decode: %w", err)
	}
	return nil
}
