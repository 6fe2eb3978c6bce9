// Package attachment stores files uploaded against tasks. Metadata lives in
// SQLite; file contents live on an afero filesystem rooted at the attachments
// directory.
package attachment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/DhimiMohamed/taskmanager/store"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("attachment too large")

// Attachment is a file attached to a task.
type Attachment struct {
	ID               int64     `json:"id"`
	TaskID           int64     `json:"task_id"`
	UploadedBy       int64     `json:"uploaded_by"`
	Path             string    `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	Description      string    `json:"description"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Store saves attachment files and their metadata.
type Store struct {
	db      *sql.DB
	fs      afero.Fs
	maxSize int64
}

// NewStore returns a Store writing files under root on the OS filesystem.
func NewStore(db *sql.DB, root string, maxSize int64) *Store {
	return NewStoreFs(db, afero.NewBasePathFs(afero.NewOsFs(), root), maxSize)
}

// NewStoreFs returns a Store on an arbitrary filesystem; tests use afero.NewMemMapFs.
func NewStoreFs(db *sql.DB, fs afero.Fs, maxSize int64) *Store {
	return &Store{db: db, fs: fs, maxSize: maxSize}
}

// Save writes r as a new attachment of taskID. The stored name is random;
// the original name is kept for downloads.
func (s *Store) Save(ctx context.Context, a *Attachment, r io.Reader) error {
	a.OriginalFilename = filepath.Base(strings.TrimSpace(a.OriginalFilename))
	if a.OriginalFilename == "." || a.OriginalFilename == string(filepath.Separator) {
		a.OriginalFilename = "file"
	}
	dir := path.Join("tasks", fmt.Sprint(a.TaskID))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("attachment: mkdir: %w", err)
	}
	a.Path = path.Join(dir, uuid.NewString()+filepath.Ext(a.OriginalFilename))

	f, err := s.fs.OpenFile(a.Path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("attachment: create: %w", err)
	}
	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = s.fs.Remove(a.Path)
		return fmt.Errorf("attachment: write: %w", err)
	}
	a.Size = n
	a.UploadedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (task_id, uploaded_by, path, original_filename, description, size, uploaded_at)
		VALUES (?,?,?,?,?,?,?)`,
		a.TaskID, a.UploadedBy, a.Path, a.OriginalFilename, a.Description, a.Size, a.UploadedAt)
	if err != nil {
		_ = s.fs.Remove(a.Path)
		return fmt.Errorf("attachment: insert: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// Get returns the metadata of one attachment.
func (s *Store) Get(ctx context.Context, id int64) (*Attachment, error) {
	var a Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, uploaded_by, path, original_filename, description, size, uploaded_at
		FROM attachments WHERE id = ?`, id).
		Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.Path, &a.OriginalFilename, &a.Description, &a.Size, &a.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("attachment: get: %w", err)
	}
	return &a, nil
}

// List returns the attachments of taskID in upload order.
func (s *Store) List(ctx context.Context, taskID int64) ([]*Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, uploaded_by, path, original_filename, description, size, uploaded_at
		FROM attachments WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("attachment: list: %w", err)
	}
	defer rows.Close()
	var out []*Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.Path, &a.OriginalFilename, &a.Description, &a.Size, &a.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Open returns a reader for the attachment contents. The caller closes it.
func (s *Store) Open(a *Attachment) (afero.File, error) {
	f, err := s.fs.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("attachment: open: %w", err)
	}
	return f, nil
}

// Delete removes the attachment metadata and file.
func (s *Store) Delete(ctx context.Context, a *Attachment) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, a.ID); err != nil {
		return fmt.Errorf("attachment: delete: %w", err)
	}
	if err := s.fs.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("attachment: remove file: %w", err)
	}
	return nil
}
