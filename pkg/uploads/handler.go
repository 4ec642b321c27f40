package uploads

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/seasky/seasky-web/pkg/logging"
)

// Handler receives multipart uploads from the registration page. The form
// carries the document under "file" and the target field name under
// "field". Accepted documents are placed in the inbox and described in a
// JSON response; the page then hands the ID to the live view.
type Handler struct {
	config Config
	inbox  *Inbox
}

// NewHandler creates an upload endpoint.
func NewHandler(config Config, inbox *Inbox) *Handler {
	return &Handler{config: config, inbox: inbox}
}

type uploadResponse struct {
	ID          string `json:"id"`
	Field       string `json:"field"`
	FileName    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
		return
	}

	log := logging.L(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, (&Error{Err: ErrFileTooLarge}).Message())
			return
		}
		writeError(w, http.StatusBadRequest, "Formulaire d'envoi invalide")
		return
	}
	defer r.MultipartForm.RemoveAll()

	field := r.FormValue("field")
	src, header, err := r.FormFile("file")
	if err != nil || field == "" {
		writeError(w, http.StatusBadRequest, "Aucun fichier reçu")
		return
	}
	defer src.Close()

	contentType := header.Header.Get("Content-Type")
	if err := h.config.Check(header.Filename, header.Size, contentType); err != nil {
		h.reject(w, log, field, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(src, h.config.MaxFileSize+1))
	if err != nil {
		log.Error("upload read failed", logging.String("field", field), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Le fichier n'a pas pu être chargé.")
		return
	}
	if int64(len(data)) > h.config.MaxFileSize {
		h.reject(w, log, field, &Error{FileName: header.Filename, Err: ErrFileTooLarge})
		return
	}

	doc, err := h.inbox.Put(r.Context(), Document{
		Field:       field,
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	})
	if err != nil {
		log.Error("upload store failed", logging.String("field", field), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Le fichier n'a pas pu être chargé.")
		return
	}

	log.Info("document uploaded",
		logging.String("field", field),
		logging.String("upload_id", doc.ID),
		logging.Int64("size", doc.Size),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(uploadResponse{
		ID:          doc.ID,
		Field:       doc.Field,
		FileName:    doc.FileName,
		Size:        doc.Size,
		ContentType: doc.ContentType,
	})
}

func (h *Handler) reject(w http.ResponseWriter, log logging.Logger, field string, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, ErrFileTooLarge) {
		status = http.StatusRequestEntityTooLarge
	} else if errors.Is(err, ErrInvalidFileType) {
		status = http.StatusUnsupportedMediaType
	}

	msg := err.Error()
	var uerr *Error
	if errors.As(err, &uerr) {
		msg = uerr.Message()
	}

	log.Warn("upload rejected", logging.String("field", field), logging.Err(err))
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
