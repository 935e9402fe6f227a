package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// PlayerID identifies one overlay panel. Panels are keyed by short strings
// ("1".."5" by default) but browser clients frequently send them as numbers,
// so both forms are accepted on decode.
type PlayerID string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *PlayerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("player id must not be null")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PlayerID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player id must be a string or number: %w", err)
	}
	*id = PlayerID(n.String())
	return nil
}

// Panel is one configured player slot.
type Panel struct {
	ID   PlayerID `json:"id" yaml:"id"`
	Name string   `json:"name" yaml:"name"`
}

// DefaultPanels returns n panels with ids "1".."n" named "Name 1".."Name n".
// A non-positive n yields no panels.
func DefaultPanels(n int) []Panel {
	n = max(n, 0)
	panels := make([]Panel, 0, n)
	for i := 1; i <= n; i++ {
		panels = append(panels, Panel{
			ID:   PlayerID(strconv.Itoa(i)),
			Name: fmt.Sprintf("Name %d", i),
		})
	}
	return panels
}

// Player is the display state of a single panel.
type Player struct {
	Name  string `json:"name"`
	Muted bool   `json:"muted"`
}

// Players maps panel ids to their display state.
type Players map[PlayerID]*Player

// Clone returns a deep copy.
func (p Players) Clone() Players {
	out := make(Players, len(p))
	for id, player := range p {
		cp := *player
		out[id] = &cp
	}
	return out
}

// IDs returns the panel ids in a stable order: numeric ids ascending first,
// then the rest lexically.
func (p Players) IDs() []PlayerID {
	ids := make([]PlayerID, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// PlayerPatch carries the fields of a Player that changed. Nil fields are left
// untouched when the patch is merged.
type PlayerPatch struct {
	Name  *string `json:"name,omitempty"`
	Muted *bool   `json:"muted,omitempty"`
}

// Apply merges the patch into player.
func (pp PlayerPatch) Apply(player *Player) {
	if pp.Name != nil {
		player.Name = *pp.Name
	}
	if pp.Muted != nil {
		player.Muted = *pp.Muted
	}
}

// Scores maps panel ids to their (possibly negative) score.
type Scores map[PlayerID]int

// Clone returns a copy.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for id, score := range s {
		out[id] = score
	}
	return out
}

// SortIDs orders panel ids numerically where possible.
func SortIDs(ids []PlayerID) {
	sort.Slice(ids, func(i, j int) bool {
		a, aErr := strconv.Atoi(string(ids[i]))
		b, bErr := strconv.Atoi(string(ids[j]))
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
