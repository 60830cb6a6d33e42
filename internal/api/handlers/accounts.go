package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/medportal/internal/account"
)

const smallBody = 64 << 10

type AccountHandler struct {
	errorWriter
	svc *account.Service
}

func NewAccountHandler(svc *account.Service, development bool) *AccountHandler {
	return &AccountHandler{errorWriter: errorWriter{development: development}, svc: svc}
}

type credentials struct {
	DOB           string `json:"dob"`
	AccountNumber string `json:"accountNumber"`
}

func (c credentials) complete() bool {
	return c.DOB != "" && c.AccountNumber != ""
}

func (h *AccountHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DOB string `json:"dob"`
	}
	if err := decode(w, r, smallBody, &req); err != nil {
		h.badBody(w, err, "Date of birth is required")
		return
	}
	if req.DOB == "" {
		h.writeError(w, http.StatusBadRequest, "Date of birth is required")
		return
	}

	number, err := h.svc.Generate(r.Context(), req.DOB)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"accountNumber": number,
		"message":       "Account created successfully",
	})
}

func (h *AccountHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decode(w, r, smallBody, &req); err != nil {
		h.badBody(w, err, "Date of birth and account number are required")
		return
	}
	if !req.complete() {
		h.writeError(w, http.StatusBadRequest, "Date of birth and account number are required")
		return
	}

	if _, err := h.svc.Authenticate(r.Context(), req.DOB, req.AccountNumber); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
