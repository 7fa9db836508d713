// Package upload validates and stores expense documents on disk.
//
// Files live in a flat documents/ directory under the upload root and are
// named <userID>-<expenseID>-<unixNano>-<sanitized original name>, so a
// stored file maps back to exactly one owner and expense.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/wedding-planner/internal/model"
)

const (
	// DocumentsDir is the subdirectory of the upload root holding documents.
	DocumentsDir = "documents"
	// URLPrefix is the prefix of the relative path stored on documents.
	URLPrefix = "/uploads/" + DocumentsDir + "/"

	DefaultMaxFiles = 10
	maxNameLen      = 100
	// MaxOriginalNameLen bounds the client file name kept on a document.
	MaxOriginalNameLen = 255
)

// AllowedTypes is the default MIME allow-list for documents.
var AllowedTypes = []string{
	"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp", "application/pdf",
}

// RejectedError is returned when a file violates the upload policy.
type RejectedError struct {
	Filename string
	Reason   string
}

func (e *RejectedError) Error() string {
	if e.Filename == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// Policy bounds what a single request may upload.
type Policy struct {
	allowed      map[string]struct{}
	MaxFileBytes int64
	MaxFiles     int
}

// NewPolicy returns a policy accepting AllowedTypes up to maxFileBytes
// each and DefaultMaxFiles per request.
func NewPolicy(maxFileBytes int64) Policy {
	allowed := make(map[string]struct{}, len(AllowedTypes))
	for _, t := range AllowedTypes {
		allowed[t] = struct{}{}
	}
	return Policy{allowed: allowed, MaxFileBytes: maxFileBytes, MaxFiles: DefaultMaxFiles}
}

// Check validates the whole file set.  It never touches the disk, so a
// rejected request leaves no trace.
func (p Policy) Check(files []*multipart.FileHeader) error {
	if len(files) > p.MaxFiles {
		return &RejectedError{Reason: fmt.Sprintf("at most %d files per request", p.MaxFiles)}
	}
	for _, fh := range files {
		if _, ok := p.allowed[mediaType(fh)]; !ok {
			return &RejectedError{Filename: fh.Filename, Reason: "only images (jpeg, png, gif, webp) and PDF files are allowed"}
		}
		if utf8.RuneCountInString(fh.Filename) > MaxOriginalNameLen {
			return &RejectedError{Reason: fmt.Sprintf("file names must be at most %d characters", MaxOriginalNameLen)}
		}
		if fh.Size > p.MaxFileBytes {
			return &RejectedError{Filename: fh.Filename, Reason: fmt.Sprintf("file exceeds the %d MB limit", p.MaxFileBytes>>20)}
		}
	}
	return nil
}

// mediaType returns the declared, lowercased media type of a part.
func mediaType(fh *multipart.FileHeader) string {
	mt, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// Store writes documents below a root directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates the upload directories (idempotently) and returns a
// store rooted at root.
func NewStore(root string) (*Store, error) {
	dir := filepath.Join(root, DocumentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Sanitize keeps [A-Za-z0-9_.-] of the base name and replaces everything
// else with '_'.
func Sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > maxNameLen {
		ext := filepath.Ext(out)
		if len(ext) > 10 {
			ext = ""
		}
		out = out[:maxNameLen-len(ext)] + ext
	}
	if out == "" || out == "." || out == ".." {
		out = "file"
	}
	return out
}

// Save writes all files for one expense.  If any write fails the files
// already written by this call are removed before returning.
func (s *Store) Save(userID, expenseID string, files []*multipart.FileHeader) ([]model.Document, error) {
	docs := make([]model.Document, 0, len(files))
	for _, fh := range files {
		d, err := s.saveOne(userID, expenseID, fh)
		if err != nil {
			s.RemoveDocuments(docs)
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *Store) saveOne(userID, expenseID string, fh *multipart.FileHeader) (model.Document, error) {
	src, err := fh.Open()
	if err != nil {
		return model.Document{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	now := s.now().UTC()
	base := Sanitize(fh.Filename)

	var (
		name, path string
		dst        *os.File
	)
	// O_EXCL never overwrites; a clash on the timestamp moves it forward.
	for i := int64(0); ; i++ {
		name = fmt.Sprintf("%s-%s-%d-%s", userID, expenseID, now.UnixNano()+i, base)
		path = filepath.Join(s.dir, name)
		dst, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || i >= 9 {
			return model.Document{}, fmt.Errorf("create %s: %w", name, err)
		}
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return model.Document{}, fmt.Errorf("write %s: %w", name, err)
	}

	return model.Document{
		ID:           uuid.NewString(),
		Filename:     name,
		OriginalName: fh.Filename,
		Path:         URLPrefix + name,
		Size:         n,
		MimeType:     mediaType(fh),
		UploadedAt:   now.Truncate(time.Microsecond),
	}, nil
}

// Open opens a stored document for reading.
func (s *Store) Open(filename string) (*os.File, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return nil, fs.ErrNotExist
	}
	return os.Open(filepath.Join(s.dir, filename))
}

// Remove deletes stored files by name.  Missing files are logged and
// otherwise ignored.
func (s *Store) Remove(filenames ...string) {
	for _, name := range filenames {
		if name == "" || filepath.Base(name) != name {
			continue
		}
		err := os.Remove(filepath.Join(s.dir, name))
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist):
			slog.Warn("document file already absent", "file", name)
		default:
			slog.Error("remove document file", "file", name, "err", err)
		}
	}
}

// RemoveDocuments deletes the files backing docs.
func (s *Store) RemoveDocuments(docs []model.Document) {
	for _, d := range docs {
		s.Remove(d.Filename)
	}
}
