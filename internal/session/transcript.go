package session

import "strings"

// Speaker identifies who said a [Turn].
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// Turn is one transcript entry.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// transcript accumulates streamed transcription fragments. Each speaker has a
// buffer holding everything said since the last turn boundary; the buffer
// replaces the text of the last entry while that entry belongs to the same
// speaker, so a growing utterance updates in place instead of appending one
// entry per fragment.
type transcript struct {
	turns []Turn
	user  string
	model string
}

// add appends a fragment for sp and coalesces it into the transcript.
func (t *transcript) add(sp Speaker, fragment string) {
	var text string
	switch sp {
	case SpeakerUser:
		t.user += fragment
		text = t.user
	default:
		t.model += fragment
		text = t.model
	}

	if n := len(t.turns); n > 0 && t.turns[n-1].Speaker == sp {
		t.turns[n-1].Text = text
		return
	}
	t.turns = append(t.turns, Turn{Speaker: sp, Text: text})
}

// greet appends a model turn that is not part of any buffer.
func (t *transcript) greet(text string) {
	t.turns = append(t.turns, Turn{Speaker: SpeakerModel, Text: text})
}

// endTurn resets both buffers at a turn boundary.
func (t *transcript) endTurn() {
	t.user = ""
	t.model = ""
}

// reset empties the transcript for a new session.
func (t *transcript) reset() {
	t.turns = nil
	t.endTurn()
}

// snapshot returns a copy of the entries.
func (t *transcript) snapshot() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// flush ends the current turn and returns the entries with surrounding
// whitespace trimmed and empty entries removed.
func (t *transcript) flush() []Turn {
	t.endTurn()
	out := make([]Turn, 0, len(t.turns))
	for _, turn := range t.turns {
		turn.Text = strings.TrimSpace(turn.Text)
		if turn.Text != "" {
			out = append(out, turn)
		}
	}
	return out
}
