package tabs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/markdown"
)

// UntitledNote is the title given to a note saved without one.
const UntitledNote = "Untitled"

// NotesAPI is the note collection.
type NotesAPI interface {
	ListNotes(ctx context.Context, projectID apiclient.ID) ([]apiclient.Note, error)
	CreateNote(ctx context.Context, projectID apiclient.ID, in apiclient.NoteInput) (*apiclient.Note, error)
	UpdateNote(ctx context.Context, projectID, noteID apiclient.ID, in apiclient.NoteInput) (*apiclient.Note, error)
	DeleteNote(ctx context.Context, projectID, noteID apiclient.ID) error
}

// NotesTab lists free-form notes.
type NotesTab struct {
	*Tab[apiclient.Note, apiclient.NoteInput, apiclient.NoteInput]
}

// NewNotesTab creates the notes tab of a project.
func NewNotesTab(api NotesAPI, projectID apiclient.ID, logger *slog.Logger) *NotesTab {
	return &NotesTab{
		Tab: NewTab(projectID, Ops[apiclient.Note, apiclient.NoteInput, apiclient.NoteInput]{
			Noun:   "note",
			List:   api.ListNotes,
			Create: api.CreateNote,
			Update: api.UpdateNote,
			Delete: api.DeleteNote,
			ID:     func(n apiclient.Note) apiclient.ID { return n.ID },
			Fields: func(n apiclient.Note) []string { return []string{n.Title, n.Body} },
		}, logger),
	}
}

func noteInput(title, body string) apiclient.NoteInput {
	title = strings.TrimSpace(title)
	if title == "" {
		title = UntitledNote
	}
	return apiclient.NoteInput{Title: title, Body: body}
}

// Add creates a note.
func (t *NotesTab) Add(ctx context.Context, title, body string) error {
	return t.Create(ctx, noteInput(title, body))
}

// Edit replaces a note's title and body.
func (t *NotesTab) Edit(ctx context.Context, id apiclient.ID, title, body string) error {
	return t.Update(ctx, id, noteInput(title, body))
}

// DocumentsAPI is the document collection.
type DocumentsAPI interface {
	ListDocuments(ctx context.Context, projectID apiclient.ID) ([]apiclient.Document, error)
	CreateDocument(ctx context.Context, projectID apiclient.ID, in apiclient.DocumentInput) (*apiclient.Document, error)
	UpdateDocument(ctx context.Context, projectID, docID apiclient.ID, in apiclient.DocumentInput) (*apiclient.Document, error)
	DeleteDocument(ctx context.Context, projectID, docID apiclient.ID) error
}

// DocumentsTab lists titled documents.
type DocumentsTab struct {
	*Tab[apiclient.Document, apiclient.DocumentInput, apiclient.DocumentInput]
	conv *markdown.Converter
}

// NewDocumentsTab creates the documents tab of a project.
func NewDocumentsTab(api DocumentsAPI, projectID apiclient.ID, logger *slog.Logger) *DocumentsTab {
	return &DocumentsTab{
		Tab: NewTab(projectID, Ops[apiclient.Document, apiclient.DocumentInput, apiclient.DocumentInput]{
			Noun:   "document",
			List:   api.ListDocuments,
			Create: api.CreateDocument,
			Update: api.UpdateDocument,
			Delete: api.DeleteDocument,
			ID:     func(d apiclient.Document) apiclient.ID { return d.ID },
			Fields: func(d apiclient.Document) []string { return []string{d.Title, d.Content} },
		}, logger),
		conv: markdown.NewConverter(),
	}
}

// Add creates a document. The title is required.
func (t *DocumentsTab) Add(ctx context.Context, title, content string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return t.Create(ctx, apiclient.DocumentInput{Title: title, Content: content})
}

// Edit replaces a document's title and content.
func (t *DocumentsTab) Edit(ctx context.Context, id apiclient.ID, title, content string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return t.Update(ctx, id, apiclient.DocumentInput{Title: title, Content: content})
}

// ImportHTML converts an HTML file to markdown and stores it as a new
// document. The page title names the document, else the file name.
func (t *DocumentsTab) ImportHTML(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	res, err := t.conv.Convert(data)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t.Add(ctx, title, res.Markdown)
}
