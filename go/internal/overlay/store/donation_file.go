package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jaymepena/debatelords/go/internal/models"
)

// DonationFile persists the donation snapshot ({"total": .., "goal": ..})
// separately from the overlay document.
type DonationFile struct {
	path string

	mu          sync.Mutex
	lastWritten []byte
}

// NewDonationFile creates a donation file store at path.
func NewDonationFile(path string) *DonationFile {
	return &DonationFile{path: path}
}

// Path returns the backing file.
func (f *DonationFile) Path() string {
	return f.path
}

// Load reads the snapshot. A zero or missing goal falls back to
// models.DefaultDonationGoal. raw is the file content as read.
func (f *DonationFile) Load() (snap models.DonationSnapshot, raw []byte, err error) {
	raw, err = os.ReadFile(f.path)
	if err != nil {
		return models.DonationSnapshot{Goal: models.DefaultDonationGoal}, nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.DonationSnapshot{Goal: models.DefaultDonationGoal}, raw, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if snap.Goal == 0 {
		snap.Goal = models.DefaultDonationGoal
	}
	return snap, raw, nil
}

// Save replaces the file with snap.
func (f *DonationFile) Save(snap models.DonationSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal donations: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeFileAtomic(f.path, data); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	f.lastWritten = data
	return nil
}

// WrittenByUs reports whether raw is exactly what the last Save wrote, which
// lets a file watcher ignore its own writes.
func (f *DonationFile) WrittenByUs(raw []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastWritten != nil && bytes.Equal(raw, f.lastWritten)
}
