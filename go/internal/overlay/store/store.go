package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
)

// FileStore persists the overlay document (players, scores, timer) as one
// JSON file. Every save re-reads the file and merges only the sections named
// by the update, so independent state groups never overwrite each other.
type FileStore struct {
	path     string
	panels   []models.Panel
	duration time.Duration

	// mu serialises read-merge-write cycles within this process. Writers in
	// other processes are not coordinated.
	mu sync.Mutex
}

// NewFileStore creates a store backed by path. panels and duration define
// the defaults filled in for anything missing on disk.
func NewFileStore(path string, panels []models.Panel, duration time.Duration) *FileStore {
	return &FileStore{
		path:     path,
		panels:   panels,
		duration: duration,
	}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// document mirrors the file layout with each section left raw so that one
// malformed section does not discard the others.
type document struct {
	Players json.RawMessage `json:"players"`
	Scores  json.RawMessage `json:"scores"`
	Timer   json.RawMessage `json:"timer"`
}

// Load reads the document. It always returns a usable Blob: a missing or
// unparsable file yields the full default, and a missing or malformed section
// is defaulted while the sections that did parse are kept. The returned error
// describes what had to be defaulted and is meant for logging.
func (s *FileStore) Load() (models.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

func (s *FileStore) load() (models.Blob, error) {
	def := models.DefaultBlob(s.panels, s.duration)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return def, fmt.Errorf("read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return def, fmt.Errorf("parse %s: %w", s.path, err)
	}

	var errs []error
	blob := def

	if isNull(doc.Players) {
		errs = append(errs, errors.New("players section missing"))
	} else {
		var players models.Players
		if err := json.Unmarshal(doc.Players, &players); err != nil {
			errs = append(errs, fmt.Errorf("players section: %w", err))
		} else {
			blob.Players = s.fillPlayers(players)
		}
	}

	if isNull(doc.Scores) {
		errs = append(errs, errors.New("scores section missing"))
	} else {
		var scores models.Scores
		if err := json.Unmarshal(doc.Scores, &scores); err != nil {
			errs = append(errs, fmt.Errorf("scores section: %w", err))
		} else {
			blob.Scores = s.fillScores(scores)
		}
	}

	if isNull(doc.Timer) {
		errs = append(errs, errors.New("timer section missing"))
	} else {
		var timer models.TimerState
		if err := json.Unmarshal(doc.Timer, &timer); err != nil {
			errs = append(errs, fmt.Errorf("timer section: %w", err))
		} else {
			blob.Timer = sanitizeTimer(timer)
		}
	}

	if len(errs) > 0 {
		return blob, fmt.Errorf("load %s: %w", s.path, errors.Join(errs...))
	}
	return blob, nil
}

// MergeAndSave applies partial on top of what is currently on disk and writes
// the result back. Sections and ids not named by partial keep their on-disk
// values byte for byte.
func (s *FileStore) MergeAndSave(partial models.PartialBlob) error {
	if partial.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("path", s.path).Msg("merging into partially defaulted document")
	}

	partial.MergeInto(&current)

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// fillPlayers adds configured panels that are absent from the file. Ids found
// in the file but not configured are kept.
func (s *FileStore) fillPlayers(players models.Players) models.Players {
	if players == nil {
		players = make(models.Players, len(s.panels))
	}
	for id, p := range players {
		if p == nil {
			players[id] = &models.Player{}
		}
	}
	for _, panel := range s.panels {
		if _, ok := players[panel.ID]; !ok {
			players[panel.ID] = &models.Player{Name: panel.Name}
		}
	}
	return players
}

func (s *FileStore) fillScores(scores models.Scores) models.Scores {
	if scores == nil {
		scores = make(models.Scores, len(s.panels))
	}
	for _, panel := range s.panels {
		if _, ok := scores[panel.ID]; !ok {
			scores[panel.ID] = 0
		}
	}
	return scores
}

// sanitizeTimer restores the invariants a hand-edited file may have broken.
func sanitizeTimer(t models.TimerState) models.TimerState {
	if t.RemainingTime < 0 {
		t.RemainingTime = 0
	}
	if t.LastSelectedTime < 0 {
		t.LastSelectedTime = 0
	}
	if !t.IsRunning {
		t.StartTimestamp = nil
	}
	return t
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// writeFileAtomic replaces path with data via a temp file in the same
// directory so readers never observe a half-written document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
