package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strconv"
)

// File is one file part of a multipart body.
type File struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Payload is a flat request body. It is sent as JSON unless it carries
// files, in which case it is sent as multipart/form-data.
type Payload struct {
	Fields map[string]any
	Files  map[string]File
}

func NewPayload() *Payload {
	return &Payload{Fields: make(map[string]any), Files: make(map[string]File)}
}

// Set stores a field value.
func (p *Payload) Set(key string, value any) *Payload {
	p.Fields[key] = value
	return p
}

// Attach stores a file part.
func (p *Payload) Attach(key string, f File) *Payload {
	p.Files[key] = f
	return p
}

// Multipart reports whether the payload must be sent as multipart.
func (p *Payload) Multipart() bool {
	return len(p.Files) > 0
}

// Encode returns the body and its Content-Type.
func (p *Payload) Encode() (io.Reader, string, error) {
	if !p.Multipart() {
		data, err := json.Marshal(p.Fields)
		if err != nil {
			return nil, "", fmt.Errorf("encode json payload: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, key := range sortedKeys(p.Fields) {
		for _, v := range formValues(p.Fields[key]) {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", fmt.Errorf("encode field %s: %w", key, err)
			}
		}
	}

	for _, key := range sortedKeys(p.Files) {
		f := p.Files[key]
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, key, f.FileName))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("encode file %s: %w", key, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("encode file %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// formValues renders one field as form values. Lists become repeated
// parts.
func formValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case bool:
		return []string{strconv.FormatBool(val)}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
