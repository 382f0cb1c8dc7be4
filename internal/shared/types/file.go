package types

import (
	"path"
	"strings"
	"time"
)

// Language identifies how a source file participates in a build
type Language string

const (
	LanguageTSX   Language = "tsx"
	LanguageJSX   Language = "jsx"
	LanguageTS    Language = "ts"
	LanguageJS    Language = "js"
	LanguageCSS   Language = "css"
	LanguageOther Language = "other"
)

// SourceFile is a single persisted project file. It is treated as
// immutable by every consumer.
type SourceFile struct {
	Path     string   `json:"path"`
	Content  string   `json:"content"`
	Language Language `json:"language"`
}

// Size returns the content length in bytes
func (f SourceFile) Size() int {
	return len(f.Content)
}

// LanguageFromPath infers a Language from a file extension
func LanguageFromPath(p string) Language {
	switch strings.ToLower(path.Ext(p)) {
	case ".tsx":
		return LanguageTSX
	case ".jsx":
		return LanguageJSX
	case ".ts", ".mts", ".cts":
		return LanguageTS
	case ".js", ".mjs", ".cjs":
		return LanguageJS
	case ".css":
		return LanguageCSS
	default:
		return LanguageOther
	}
}

// Project is a titled snapshot of files handed over by persistence.
// File order is significant: entry fallback, style concatenation and
// module name collisions all follow it.
type Project struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Files     []SourceFile `json:"files"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ProjectMetadata summarizes a project without file contents
type ProjectMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FileCount int       `json:"file_count"`
	Bytes     int       `json:"bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToMetadata extracts metadata from a project
func (p *Project) ToMetadata() ProjectMetadata {
	total := 0
	for _, f := range p.Files {
		total += f.Size()
	}
	return ProjectMetadata{
		ID:        p.ID,
		Title:     p.Title,
		FileCount: len(p.Files),
		Bytes:     total,
		UpdatedAt: p.UpdatedAt,
	}
}
