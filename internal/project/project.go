package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/timeline"
)

// DocumentVersion is bumped when the on-disk shape changes.
const DocumentVersion = 1

// Document is the project file: the asset manifest plus every
// sequence, one of which is open in the preview.
type Document struct {
	Version          int                  `json:"version"`
	Assets           []*asset.Asset       `json:"assets"`
	Sequences        []*timeline.Sequence `json:"sequences"`
	ActiveSequenceID string               `json:"activeSequenceId,omitempty"`
}

func NewDocument() *Document {
	return &Document{Version: DocumentVersion}
}

// ActiveSequence resolves the open sequence: the one the document
// points at, else the first, else nil.
func (d *Document) ActiveSequence() *timeline.Sequence {
	if d.ActiveSequenceID != "" {
		for _, seq := range d.Sequences {
			if seq.ID == d.ActiveSequenceID {
				return seq
			}
		}
	}
	if len(d.Sequences) > 0 {
		return d.Sequences[0]
	}
	return nil
}

func (d *Document) FindSequence(id string) *timeline.Sequence {
	for _, seq := range d.Sequences {
		if seq.ID == id {
			return seq
		}
	}
	return nil
}

// Store reads and writes the project document at a fixed path.
type Store struct {
	path string
	log  zerolog.Logger
}

func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{path: path, log: logger}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the document from disk. A missing file yields a fresh
// empty document, not an error.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.log.Info().Str("path", s.path).Msg("no project file, starting empty")
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", s.path, err)
	}
	if doc.Version == 0 {
		doc.Version = DocumentVersion
	}

	s.log.Info().
		Str("path", s.path).
		Int("assets", len(doc.Assets)).
		Int("sequences", len(doc.Sequences)).
		Msg("project loaded")
	return &doc, nil
}

// Save writes the document atomically: marshal to a sibling temp
// file, then rename over the target.
func (s *Store) Save(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit project: %w", err)
	}

	s.log.Debug().Str("path", s.path).Msg("project saved")
	return nil
}
