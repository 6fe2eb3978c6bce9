package api

import (
	"net/http"

	"github.com/DhimiMohamed/taskmanager/account"
)

// --- Profile and settings handlers ---

func (h *Handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Accounts.Store.GetProfile(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var p account.Profile
	if !decode(w, r, &p) {
		return
	}
	p.UserID = UserID(r.Context())
	if err := h.Accounts.Store.SaveProfile(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.Accounts.Store.GetSettings(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	uid := UserID(r.Context())
	// Start from the stored settings so omitted fields keep their value.
	st, err := h.Accounts.Store.GetSettings(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !decode(w, r, st) {
		return
	}
	st.UserID = uid
	if err := h.Accounts.UpdateSettings(r.Context(), st); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
