package uploads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/seasky/seasky-web/pkg/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConfigCheck(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Check("cni.png", 2048, "image/png"))
	assert.NoError(t, cfg.Check("rccm.pdf", 2048, "application/pdf"))
	assert.NoError(t, cfg.Check("photo.jpg", MaxDocumentSize, "image/jpeg; charset=binary"))

	err := cfg.Check("scan.png", MaxDocumentSize+1, "image/png")
	assert.ErrorIs(t, err, ErrFileTooLarge)
	var uerr *Error
	require.True(t, errors.As(err, &uerr))
	assert.Contains(t, uerr.Message(), "10 Mo")

	assert.ErrorIs(t, cfg.Check("notes.docx", 10, "application/msword"), ErrInvalidFileType)
	assert.ErrorIs(t, cfg.Check("vide.png", 0, "image/png"), ErrEmptyFile)
}

func TestConfigWildcard(t *testing.T) {
	cfg := Config{Accept: []string{"image/*"}}
	assert.NoError(t, cfg.Check("a.webp", 1, "image/webp"))
	assert.Error(t, cfg.Check("a.pdf", 1, "application/pdf"))
	assert.Error(t, cfg.Check("a", 1, "imagex/png"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "cni.png", sanitizeFilename(`C:\Users\jean\cni.png`))
	assert.Equal(t, "document", sanitizeFilename(""))
}

func newTestInbox(t *testing.T) *Inbox {
	t.Helper()
	store := state.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	return NewInbox(store, 0)
}

func TestInboxClaimOnce(t *testing.T) {
	inbox := newTestInbox(t)
	ctx := context.Background()

	doc, err := inbox.Put(ctx, Document{Field: "id_front_image", FileName: "front.png", ContentType: "image/png", Size: 3, Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)

	got, err := inbox.Claim(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got.Data)

	_, err = inbox.Claim(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func multipartBody(t *testing.T, field, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("field", field))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandlerAcceptsDocument(t *testing.T) {
	inbox := newTestInbox(t)
	h := NewHandler(DefaultConfig(), inbox)

	body, ct := multipartBody(t, "passport_photo", "moi.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/_uploads", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "passport_photo", resp.Field)
	assert.Equal(t, int64(len("png-bytes")), resp.Size)

	doc, err := inbox.Claim(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "moi.png", doc.FileName)
}

func TestHandlerRejectsType(t *testing.T) {
	h := NewHandler(DefaultConfig(), newTestInbox(t))

	body, ct := multipartBody(t, "business_document", "statuts.zip", "application/zip", []byte("PK"))
	req := httptest.NewRequest(http.MethodPost, "/_uploads", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), "statuts.zip")
}

func TestHandlerRejectsOversize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFileSize = 4
	h := NewHandler(cfg, newTestInbox(t))

	body, ct := multipartBody(t, "id_back_image", "back.png", "image/png", []byte("too-large"))
	req := httptest.NewRequest(http.MethodPost, "/_uploads", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandlerMethod(t *testing.T) {
	h := NewHandler(DefaultConfig(), newTestInbox(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_uploads", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
