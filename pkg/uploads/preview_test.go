package uploads

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (func(Preview), <-chan Preview) {
	ch := make(chan Preview, 8)
	return func(p Preview) { ch <- p }, ch
}

func receive(t *testing.T, ch <-chan Preview) Preview {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("preview not delivered")
		return Preview{}
	}
}

func TestPreviewImageDataURL(t *testing.T) {
	deliver, ch := collect()
	p := NewPreviewer(deliver)
	defer p.Close()

	tok := p.Request(Document{Field: "passport_photo", FileName: "moi.png", ContentType: "image/png", Data: []byte("abc")})
	pv := receive(t, ch)

	assert.Equal(t, tok, pv.Token)
	assert.Equal(t, "data:image/png;base64,YWJj", pv.URL)
	assert.True(t, p.Apply(pv))
	assert.False(t, p.Pending("passport_photo"))
}

func TestPreviewStaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	deliver, ch := collect()
	p := NewPreviewer(deliver)
	p.render = func(d Document) (string, error) {
		if d.FileName == "old.png" {
			<-release
		}
		return "data:" + d.FileName, nil
	}
	defer p.Close()

	oldTok := p.Request(Document{Field: "id_front_image", FileName: "old.png"})
	newTok := p.Request(Document{Field: "id_front_image", FileName: "new.png"})
	require.NotEqual(t, oldTok, newTok)

	fresh := receive(t, ch)
	close(release)
	stale := receive(t, ch)

	assert.Equal(t, newTok, fresh.Token)
	assert.Equal(t, oldTok, stale.Token)
	assert.False(t, p.Apply(stale), "superseded preview must be discarded")
	assert.True(t, p.Apply(fresh))
}

func TestPreviewCancelledField(t *testing.T) {
	deliver, ch := collect()
	p := NewPreviewer(deliver)
	defer p.Close()

	p.Request(Document{Field: "proof_of_address", FileName: "facture.png", ContentType: "image/png", Data: []byte{1}})
	p.Cancel("proof_of_address")

	assert.False(t, p.Apply(receive(t, ch)))
}

func TestPreviewFailuresBecomeNotices(t *testing.T) {
	deliver, ch := collect()
	p := NewPreviewer(deliver)
	defer p.Close()

	p.render = func(d Document) (string, error) {
		if d.FileName == "panic.png" {
			panic("corrupt image")
		}
		return "", errors.New("decode failed")
	}

	p.Request(Document{Field: "a", FileName: "panic.png"})
	first := receive(t, ch)
	p.Request(Document{Field: "b", FileName: "broken.png"})
	second := receive(t, ch)

	for _, pv := range []Preview{first, second} {
		assert.Empty(t, pv.URL)
		assert.True(t, strings.HasPrefix(pv.Notice, "Aperçu indisponible"), pv.Notice)
	}
}

func TestPreviewPDFHasNoURL(t *testing.T) {
	deliver, ch := collect()
	p := NewPreviewer(deliver)
	defer p.Close()

	p.Request(Document{Field: "business_document", FileName: "rccm.pdf", ContentType: "application/pdf", Data: []byte("%PDF")})
	pv := receive(t, ch)
	assert.Empty(t, pv.URL)
	assert.Empty(t, pv.Notice)
}
