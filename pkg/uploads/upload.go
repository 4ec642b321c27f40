// Package uploads accepts identity and business documents from the browser,
// holds them until the registration form claims them, and renders previews.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seasky/seasky-web/pkg/state"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrEmptyFile       = errors.New("empty file")
	ErrNotFound        = errors.New("upload not found or expired")
)

// MaxDocumentSize is the largest document the registration form accepts.
const MaxDocumentSize = 10 << 20

// Config restricts what a document field accepts.
type Config struct {
	// Accept lists allowed MIME types. "type/*" matches a whole family.
	Accept []string

	// MaxFileSize is the maximum size in bytes.
	MaxFileSize int64
}

// DefaultConfig accepts common image formats and PDF up to 10MB.
func DefaultConfig() Config {
	return Config{
		Accept: []string{
			"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp",
			"application/pdf",
		},
		MaxFileSize: MaxDocumentSize,
	}
}

// Error is a rejected file. Message is suitable for display.
type Error struct {
	FileName string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("uploads: %s: %v", e.FileName, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the user-facing explanation.
func (e *Error) Message() string {
	switch {
	case errors.Is(e.Err, ErrFileTooLarge):
		return fmt.Sprintf("Le fichier %q dépasse la taille maximale de 10 Mo.", e.FileName)
	case errors.Is(e.Err, ErrInvalidFileType):
		return fmt.Sprintf("Le fichier %q n'est pas dans un format accepté (image ou PDF).", e.FileName)
	case errors.Is(e.Err, ErrEmptyFile):
		return fmt.Sprintf("Le fichier %q est vide.", e.FileName)
	default:
		return "Le fichier n'a pas pu être chargé."
	}
}

// Check validates a selected file before its content is read.
func (c Config) Check(fileName string, size int64, contentType string) error {
	switch {
	case size <= 0:
		return &Error{FileName: fileName, Err: ErrEmptyFile}
	case c.MaxFileSize > 0 && size > c.MaxFileSize:
		return &Error{FileName: fileName, Err: ErrFileTooLarge}
	case !c.allows(contentType):
		return &Error{FileName: fileName, Err: ErrInvalidFileType}
	}
	return nil
}

func (c Config) allows(contentType string) bool {
	if len(c.Accept) == 0 {
		return true
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, allowed := range c.Accept {
		if allowed == "*/*" || allowed == contentType {
			return true
		}
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok && strings.HasPrefix(contentType, prefix+"/") {
			return true
		}
	}
	return false
}

// Document is an uploaded file held in memory.
type Document struct {
	ID          string `msgpack:"id"`
	Field       string `msgpack:"field"`
	FileName    string `msgpack:"file_name"`
	ContentType string `msgpack:"content_type"`
	Size        int64  `msgpack:"size"`
	Data        []byte `msgpack:"data"`
}

// IsImage reports whether the document can be previewed inline.
func (d Document) IsImage() bool {
	return strings.HasPrefix(d.ContentType, "image/")
}

// Inbox holds uploaded documents until a form claims them by ID.
type Inbox struct {
	docs *state.Bucket[Document]
}

// NewInbox stores pending documents in store for ttl.
func NewInbox(store state.Store, ttl time.Duration) *Inbox {
	return &Inbox{docs: state.NewBucket[Document](store, "upload:", ttl)}
}

// Put assigns doc an ID and stores it.
func (in *Inbox) Put(ctx context.Context, doc Document) (Document, error) {
	doc.ID = uuid.NewString()
	doc.FileName = sanitizeFilename(doc.FileName)
	if err := in.docs.Save(ctx, doc.ID, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Claim removes and returns the document with id.
func (in *Inbox) Claim(ctx context.Context, id string) (Document, error) {
	doc, err := in.docs.Take(ctx, id)
	if errors.Is(err, state.ErrKeyNotFound) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '"' {
			return '_'
		}
		return r
	}, name)
	if name == "." || name == "" {
		name = "document"
	}
	if len(name) > 255 {
		ext := filepath.Ext(name)
		name = name[:255-len(ext)] + ext
	}
	return name
}
