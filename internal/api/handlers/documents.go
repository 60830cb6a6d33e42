package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nikhilbhutani/medportal/internal/account"
	"github.com/nikhilbhutani/medportal/internal/document"
)

// DocumentHandler serves the document endpoints. Every request carries the
// caller's credentials, which are checked before anything else happens.
type DocumentHandler struct {
	errorWriter
	accounts *account.Service
	docs     *document.Service
	// uploadBody bounds the JSON body of an upload: base64 of the max file
	// plus room for the other fields.
	uploadBody int64
}

func NewDocumentHandler(accounts *account.Service, docs *document.Service, maxUploadBytes int64, development bool) *DocumentHandler {
	return &DocumentHandler{
		errorWriter: errorWriter{development: development},
		accounts:    accounts,
		docs:        docs,
		uploadBody:  maxUploadBytes*4/3 + smallBody,
	}
}

// authorize decodes the body into req and checks the embedded credentials.
// It writes the error response itself and reports whether to continue.
func (h *DocumentHandler) authorize(w http.ResponseWriter, r *http.Request, limit int64, req interface{ creds() credentials }, missing string) bool {
	if err := decode(w, r, limit, req); err != nil {
		h.badBody(w, err, missing)
		return false
	}
	return h.check(w, r, req.creds(), missing)
}

func (h *DocumentHandler) check(w http.ResponseWriter, r *http.Request, c credentials, missing string) bool {
	if !c.complete() {
		h.writeError(w, http.StatusBadRequest, missing)
		return false
	}
	if _, err := h.accounts.Authenticate(r.Context(), c.DOB, c.AccountNumber); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

func (c credentials) creds() credentials { return c }

type uploadRequest struct {
	credentials
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
	FileType       string `json:"fileType"`
	FileDataBase64 string `json:"fileDataBase64"`
	Description    string `json:"description"`
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decode(w, r, h.uploadBody, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			h.fail(w, r, document.ErrFileTooLarge)
			return
		}
		h.writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !h.check(w, r, req.credentials, "Missing required fields") {
		return
	}
	if req.FileName == "" || req.FileDataBase64 == "" {
		h.writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	doc, err := h.docs.Upload(r.Context(), req.AccountNumber, document.UploadRequest{
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		FileType:    req.FileType,
		DataBase64:  req.FileDataBase64,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": doc})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !h.authorize(w, r, smallBody, &req, "Date of birth and account number are required") {
		return
	}

	docs, err := h.docs.List(r.Context(), req.AccountNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "documents": docs})
}

type documentRequest struct {
	credentials
	DocumentID string `json:"documentId"`
	Version    string `json:"version"`
}

const missingDocumentFields = "Document ID, DOB, and account number are required"

func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !h.authorize(w, r, smallBody, &req, missingDocumentFields) {
		return
	}
	if req.DocumentID == "" {
		h.writeError(w, http.StatusBadRequest, missingDocumentFields)
		return
	}

	if err := h.docs.StartProcessing(r.Context(), req.AccountNumber, req.DocumentID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Document processing started",
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !h.authorize(w, r, smallBody, &req, missingDocumentFields) {
		return
	}
	if req.DocumentID == "" {
		h.writeError(w, http.StatusBadRequest, missingDocumentFields)
		return
	}

	removed, err := h.docs.Delete(r.Context(), req.AccountNumber, req.DocumentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Document deleted successfully",
		"deletedDocument": removed,
	})
}

type batchDeleteRequest struct {
	credentials
	DocumentIDs []string `json:"documentIds"`
}

func (h *DocumentHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if !h.authorize(w, r, smallBody, &req, "Missing required fields or invalid documentIds") {
		return
	}
	if len(req.DocumentIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "Missing required fields or invalid documentIds")
		return
	}

	res, err := h.docs.BatchDelete(r.Context(), req.AccountNumber, req.DocumentIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body := map[string]any{
		"success":          true,
		"message":          fmt.Sprintf("Successfully deleted %d document(s)", len(res.Deleted)),
		"deletedCount":     len(res.Deleted),
		"deletedDocuments": res.Deleted,
	}
	if len(res.BlobDeleteErrors) > 0 {
		body["blobDeleteErrors"] = res.BlobDeleteErrors
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *DocumentHandler) View(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !h.authorize(w, r, smallBody, &req, missingDocumentFields) {
		return
	}
	if req.DocumentID == "" {
		h.writeError(w, http.StatusBadRequest, missingDocumentFields)
		return
	}

	view, err := h.docs.View(r.Context(), req.AccountNumber, req.DocumentID, req.Version)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if view.RedirectURL != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"redirectUrl":  view.RedirectURL,
			"contentType":  view.ContentType,
			"documentName": view.DocumentName,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"content":      view.Content,
		"contentType":  view.ContentType,
		"documentName": view.DocumentName,
	})
}
