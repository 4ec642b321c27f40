package uploads

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Token identifies one preview request.
type Token string

// Preview is the result of decoding a document for display. URL is a data
// URL for images and empty for other documents. Notice is set when the
// preview could not be produced.
type Preview struct {
	Field  string
	Token  Token
	URL    string
	Notice string
}

// Previewer renders document previews off the event loop. Every request
// carries a token; results for a field are applied only while that token
// is still the field's current request, so a slow decode for a replaced or
// cleared file never overwrites newer state.
type Previewer struct {
	deliver func(Preview)
	render  func(Document) (string, error)

	mu      sync.Mutex
	current map[string]Token
	closed  bool
	wg      sync.WaitGroup
}

// NewPreviewer creates a previewer that hands finished previews to deliver.
// deliver runs on the decoding goroutine.
func NewPreviewer(deliver func(Preview)) *Previewer {
	return &Previewer{
		deliver: deliver,
		render:  dataURL,
		current: make(map[string]Token),
	}
}

// Request starts decoding doc and returns the token that identifies the
// request. A later Request or Cancel for the same field supersedes it.
func (p *Previewer) Request(doc Document) Token {
	token := Token(uuid.NewString())

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return token
	}
	p.current[doc.Field] = token
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(doc, token)
	return token
}

func (p *Previewer) run(doc Document, token Token) {
	defer p.wg.Done()

	pv := Preview{Field: doc.Field, Token: token}
	func() {
		defer func() {
			if r := recover(); r != nil {
				pv.URL = ""
				pv.Notice = previewNotice(doc.FileName)
			}
		}()
		url, err := p.render(doc)
		if err != nil {
			pv.Notice = previewNotice(doc.FileName)
			return
		}
		pv.URL = url
	}()

	p.deliver(pv)
}

// Apply reports whether pv belongs to the field's current request. A
// matching preview retires the token.
func (p *Previewer) Apply(pv Preview) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current[pv.Field] != pv.Token {
		return false
	}
	delete(p.current, pv.Field)
	return true
}

// Cancel drops the pending request for field, if any.
func (p *Previewer) Cancel(field string) {
	p.mu.Lock()
	delete(p.current, field)
	p.mu.Unlock()
}

// Pending reports whether field has a request in flight.
func (p *Previewer) Pending(field string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.current[field]
	return ok
}

// Close rejects new requests and waits for running decodes to finish.
func (p *Previewer) Close() {
	p.mu.Lock()
	p.closed = true
	p.current = make(map[string]Token)
	p.mu.Unlock()

	p.wg.Wait()
}

func previewNotice(name string) string {
	return fmt.Sprintf("Aperçu indisponible pour %s.", name)
}

func dataURL(doc Document) (string, error) {
	if !doc.IsImage() {
		return "", nil
	}
	if len(doc.Data) == 0 {
		return "", ErrEmptyFile
	}
	return "data:" + doc.ContentType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data), nil
}
