package models

import "time"

// Blob is the persisted overlay document and the snapshot every client
// receives on connect.
type Blob struct {
	Players Players    `json:"players"`
	Scores  Scores     `json:"scores"`
	Timer   TimerState `json:"timer"`
}

// DefaultBlob builds the document used when nothing usable is on disk.
func DefaultBlob(panels []Panel, d time.Duration) Blob {
	return Blob{
		Players: DefaultPlayers(panels),
		Scores:  DefaultScores(panels),
		Timer:   NewTimerState(d),
	}
}

// DefaultPlayers returns unmuted players named after their panel.
func DefaultPlayers(panels []Panel) Players {
	players := make(Players, len(panels))
	for _, p := range panels {
		players[p.ID] = &Player{Name: p.Name}
	}
	return players
}

// DefaultScores returns a zero score for every panel.
func DefaultScores(panels []Panel) Scores {
	scores := make(Scores, len(panels))
	for _, p := range panels {
		scores[p.ID] = 0
	}
	return scores
}

// Clone returns a deep copy.
func (b Blob) Clone() Blob {
	return Blob{
		Players: b.Players.Clone(),
		Scores:  b.Scores.Clone(),
		Timer:   b.Timer.Clone(),
	}
}

// PartialBlob is a field-scoped update of a Blob. A nil section is left as it
// is on disk; within a section only the listed ids are touched.
type PartialBlob struct {
	Players map[PlayerID]PlayerPatch
	Scores  Scores
	Timer   *TimerState
}

// Empty reports whether the partial would change nothing.
func (p PartialBlob) Empty() bool {
	return len(p.Players) == 0 && len(p.Scores) == 0 && p.Timer == nil
}

// MergeInto applies the partial to b section by section.
func (p PartialBlob) MergeInto(b *Blob) {
	if len(p.Players) > 0 {
		if b.Players == nil {
			b.Players = make(Players, len(p.Players))
		}
		for id, patch := range p.Players {
			player, ok := b.Players[id]
			if !ok {
				player = &Player{}
				b.Players[id] = player
			}
			patch.Apply(player)
		}
	}

	if len(p.Scores) > 0 {
		if b.Scores == nil {
			b.Scores = make(Scores, len(p.Scores))
		}
		for id, score := range p.Scores {
			b.Scores[id] = score
		}
	}

	if p.Timer != nil {
		b.Timer = p.Timer.Clone()
	}
}
