// Package api implements the authenticated REST endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DhimiMohamed/taskmanager/account"
	"github.com/DhimiMohamed/taskmanager/activity"
	"github.com/DhimiMohamed/taskmanager/assistant"
	"github.com/DhimiMohamed/taskmanager/attachment"
	"github.com/DhimiMohamed/taskmanager/comms"
	"github.com/DhimiMohamed/taskmanager/policy"
	"github.com/DhimiMohamed/taskmanager/provider"
	"github.com/DhimiMohamed/taskmanager/reminder"
	"github.com/DhimiMohamed/taskmanager/store"
	"github.com/DhimiMohamed/taskmanager/task"
	"github.com/DhimiMohamed/taskmanager/team"
)

// Assistant answers a natural-language request on behalf of a user.
type Assistant interface {
	Respond(ctx context.Context, userID int64, prompt string) *assistant.Response
}

// Transcriber turns uploaded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (*provider.Transcription, error)
}

// Mailer sends plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Tasks       task.Store
	Teams       team.Store
	Accounts    *account.Service
	Reminders   *reminder.Store
	Activity    *activity.Store
	Attachments *attachment.Store
	Access      *Access
	Bus         comms.Bus
	Assistant   Assistant
	Transcriber Transcriber // nil disables POST /api/ai/voice
	Mailer      Mailer      // nil skips invitation emails
	Logger      *slog.Logger
	Version     string
	StartAt     time.Time

	// MaxVoiceBytes caps voice uploads; 0 means 25 MiB.
	MaxVoiceBytes int64
	// Now returns the current time; nil means time.Now.
	Now func() time.Time
}

var validate = validator.New()

// RegisterRoutes registers all authenticated API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/between-dates", h.tasksBetweenDates)
	mux.HandleFunc("GET /api/tasks/stats", h.taskStats)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("PUT /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)

	mux.HandleFunc("GET /api/tasks/{id}/attachments", h.listAttachments)
	mux.HandleFunc("POST /api/tasks/{id}/attachments", h.uploadAttachment)
	mux.HandleFunc("GET /api/attachments/{id}", h.downloadAttachment)
	mux.HandleFunc("DELETE /api/attachments/{id}", h.deleteAttachment)

	mux.HandleFunc("GET /api/tasks/{id}/reminders", h.listReminders)
	mux.HandleFunc("POST /api/tasks/{id}/reminders", h.createReminder)
	mux.HandleFunc("PUT /api/reminders/{id}", h.updateReminder)
	mux.HandleFunc("DELETE /api/reminders/{id}", h.deleteReminder)

	mux.HandleFunc("GET /api/categories", h.listCategories)
	mux.HandleFunc("POST /api/categories", h.createCategory)
	mux.HandleFunc("GET /api/categories/{id}", h.getCategory)
	mux.HandleFunc("PUT /api/categories/{id}", h.updateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", h.deleteCategory)

	mux.HandleFunc("GET /api/teams", h.listTeams)
	mux.HandleFunc("POST /api/teams", h.createTeam)
	mux.HandleFunc("GET /api/teams/{id}", h.getTeam)
	mux.HandleFunc("PUT /api/teams/{id}", h.updateTeam)
	mux.HandleFunc("DELETE /api/teams/{id}", h.deleteTeam)
	mux.HandleFunc("GET /api/teams/{id}/members", h.listMembers)
	mux.HandleFunc("POST /api/teams/{id}/members", h.addMember)
	mux.HandleFunc("PUT /api/teams/{id}/members/{uid}", h.setMemberRole)
	mux.HandleFunc("DELETE /api/teams/{id}/members/{uid}", h.removeMember)
	mux.HandleFunc("GET /api/teams/{id}/invitations", h.listInvitations)
	mux.HandleFunc("POST /api/teams/{id}/invitations", h.createInvitation)
	mux.HandleFunc("POST /api/invitations/{token}/accept", h.acceptInvitation)

	mux.HandleFunc("GET /api/projects", h.listProjects)
	mux.HandleFunc("POST /api/projects", h.createProject)
	mux.HandleFunc("GET /api/projects/{id}", h.getProject)
	mux.HandleFunc("PUT /api/projects/{id}", h.updateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", h.deleteProject)
	mux.HandleFunc("GET /api/projects/{id}/activity", h.projectActivity)
	mux.HandleFunc("GET /api/projects/{id}/members/{uid}/activity", h.projectMemberActivity)

	mux.HandleFunc("GET /api/activity", h.myActivity)
	mux.HandleFunc("GET /api/notifications", h.listNotifications)
	mux.HandleFunc("POST /api/notifications/read-all", h.readAllNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.readNotification)

	mux.HandleFunc("GET /api/profile", h.getProfile)
	mux.HandleFunc("PUT /api/profile", h.updateProfile)
	mux.HandleFunc("GET /api/settings", h.getSettings)
	mux.HandleFunc("PUT /api/settings", h.updateSettings)

	mux.HandleFunc("POST /api/ai/assistant", h.assistant)
	mux.HandleFunc("POST /api/ai/voice", h.voice)

	mux.HandleFunc("GET /api/version", h.version)
}

// StatusHandler returns the public health endpoint.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v and runs struct validation on it.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, "validation failed: "+ve.Error())
			return false
		}
	}
	return true
}

// pathID parses the named path value as a positive integer id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// fail maps domain errors to HTTP responses. Anything unrecognized is
// logged and reported as a 500 without detail.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, policy.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, attachment.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, team.ErrLastAdmin),
		errors.Is(err, team.ErrInvitationExpired),
		errors.Is(err, team.ErrEmailMismatch),
		errors.Is(err, account.ErrUnsupportedLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger().Error("api request failed",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// errBadRequest marks validation failures found after decoding.
var errBadRequest = errors.New("bad request")

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// publish emits a domain event after a successful write. Failures are logged
// only; the write has already happened.
func (h *Handlers) publish(ctx context.Context, ev *comms.Event) {
	if h.Bus == nil {
		return
	}
	if err := h.Bus.Publish(ctx, ev); err != nil {
		h.logger().Warn("publish event failed", slog.String("type", string(ev.Type)), slog.Any("err", err))
	}
}

// --- Status handlers ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": h.Version,
	}
	if !h.StartAt.IsZero() {
		resp["uptime_seconds"] = int64(time.Since(h.StartAt).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}
