package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/DhimiMohamed/taskmanager/attachment"
	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/policy"
)

// --- Attachment handlers ---

func (h *Handlers) listAttachments(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r, policy.ActionRead)
	if !ok {
		return
	}
	list, err := h.Attachments.List(r.Context(), t.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*attachment.Attachment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTask(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	uid := UserID(r.Context())
	a := &attachment.Attachment{
		TaskID:           t.ID,
		UploadedBy:       uid,
		OriginalFilename: header.Filename,
		Description:      r.FormValue("description"),
	}
	if err := h.Attachments.Save(r.Context(), a, file); err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r.Context(), &comms.Event{
		Type:       comms.AttachmentUploaded,
		UserID:     uid,
		ObjectType: "attachment",
		ObjectID:   a.ID,
		ProjectID:  t.ProjectID,
		Detail:     a.OriginalFilename,
	})
	writeJSON(w, http.StatusCreated, a)
}

// loadAttachment fetches the attachment named by {id} and authorizes action
// on its task. Uploaders may always delete their own files.
func (h *Handlers) loadAttachment(w http.ResponseWriter, r *http.Request, action string) (*attachment.Attachment, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	a, err := h.Attachments.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	uid := UserID(r.Context())
	if action == policy.ActionDelete && a.UploadedBy == uid {
		return a, true
	}
	t, err := h.Tasks.Get(r.Context(), a.TaskID)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if err := h.Access.Task(r.Context(), uid, action, t); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return a, true
}

func (h *Handlers) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAttachment(w, r, policy.ActionRead)
	if !ok {
		return
	}
	f, err := h.Attachments.Open(a)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.OriginalFilename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil && !errors.Is(err, r.Context().Err()) {
		h.logger().Warn("attachment download interrupted", slog.Int64("id", a.ID), slog.Any("err", err))
	}
}

func (h *Handlers) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAttachment(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	if err := h.Attachments.Delete(r.Context(), a); err != nil {
		h.fail(w, r, fmt.Errorf("delete attachment %d: %w", a.ID, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
