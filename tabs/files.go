package tabs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/maneger/apiclient"
)

// UploadExtensions are the file types the project store accepts.
var UploadExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".xlsx", ".xls"}

// Upload errors.
var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrNoMatches       = errors.New("pattern matched no files")
)

// FilesAPI is the project file store. Files cannot be downloaded.
type FilesAPI interface {
	ListFiles(ctx context.Context, projectID apiclient.ID) ([]apiclient.ProjectFile, error)
	UploadFile(ctx context.Context, projectID apiclient.ID, name string, content io.Reader) (*apiclient.ProjectFile, error)
	DeleteFile(ctx context.Context, projectID, fileID apiclient.ID) error
}

// Upload is one file to send.
type Upload struct {
	Name    string
	Content io.Reader
}

// FilesTab lists uploaded files.
type FilesTab struct {
	*Tab[apiclient.ProjectFile, Upload, struct{}]
}

// NewFilesTab creates the files tab of a project.
func NewFilesTab(api FilesAPI, projectID apiclient.ID, logger *slog.Logger) *FilesTab {
	return &FilesTab{
		Tab: NewTab(projectID, Ops[apiclient.ProjectFile, Upload, struct{}]{
			Noun: "file",
			List: api.ListFiles,
			Create: func(ctx context.Context, projectID apiclient.ID, u Upload) (*apiclient.ProjectFile, error) {
				return api.UploadFile(ctx, projectID, u.Name, u.Content)
			},
			Delete: api.DeleteFile,
			ID:     func(f apiclient.ProjectFile) apiclient.ID { return f.ID },
			Fields: func(f apiclient.ProjectFile) []string { return []string{f.OriginalName} },
		}, logger),
	}
}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	return slices.Contains(UploadExtensions, strings.ToLower(filepath.Ext(name)))
}

// Upload sends each file in order and stops at the first failure. Every
// path is checked before anything is sent.
func (t *FilesTab) Upload(ctx context.Context, paths ...string) error {
	for _, p := range paths {
		if !Supported(p) {
			return fmt.Errorf("%s: %w", p, ErrUnsupportedFile)
		}
	}
	for _, p := range paths {
		if err := t.uploadOne(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (t *FilesTab) uploadOne(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return t.Create(ctx, Upload{Name: filepath.Base(path), Content: f})
}

// UploadGlob uploads every supported file matching a doublestar pattern
// such as "reports/**/*.pdf". It returns the uploaded paths.
func (t *FilesTab) UploadGlob(ctx context.Context, pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", pattern, err)
	}

	var paths []string
	for _, m := range matches {
		if Supported(m) {
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", pattern, ErrNoMatches)
	}
	slices.Sort(paths)

	if err := t.Upload(ctx, paths...); err != nil {
		return nil, err
	}
	return paths, nil
}
