package statestore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operating modes recorded in the state document. An empty mode means no
// mode has been selected yet.
const (
	ModeBook    = "book"
	ModeSession = "session"
)

// Document is the process-wide routing state: which mode the user is in,
// which project is active, and the history of switches. It is never
// deleted, only superseded and backed up.
type Document struct {
	ActiveProject string        `json:"active_project"`
	Mode          string        `json:"mode"`
	SwitchHistory []SwitchEntry `json:"switch_history"`

	// Extra carries top-level fields other tools wrote into the state
	// document. They ride along verbatim through every read/write cycle;
	// the named fields above always win on key collision.
	Extra map[string]json.RawMessage `json:"-"`
}

// ownedKeys are the top-level keys the named Document fields occupy.
var ownedKeys = []string{"active_project", "mode", "switch_history"}

// UnmarshalJSON decodes the named fields and captures every other
// top-level key into Extra, so foreign extension fields survive a
// read-modify-write of the document.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type documentFields Document
	var fields documentFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*d = Document(fields)

	for _, key := range ownedKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		d.Extra = raw
	} else {
		d.Extra = nil
	}
	return nil
}

// MarshalJSON re-emits the captured extension fields alongside the named
// ones.
func (d *Document) MarshalJSON() ([]byte, error) {
	type documentFields Document
	data, err := json.Marshal((*documentFields)(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range d.Extra {
		if _, owned := merged[key]; !owned {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// SwitchEntry records one mode change.
type SwitchEntry struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Target     string    `json:"target"`
	SwitchedAt time.Time `json:"switched_at"`
}

// DefaultDocument returns the document written on first run.
func DefaultDocument() *Document {
	return &Document{
		SwitchHistory: []SwitchEntry{},
	}
}

// AppendSwitch records a mode change and updates the active fields.
func (d *Document) AppendSwitch(mode, target string) SwitchEntry {
	entry := SwitchEntry{
		ID:         uuid.New().String(),
		Mode:       mode,
		Target:     target,
		SwitchedAt: time.Now().UTC(),
	}

	d.Mode = mode
	if mode == ModeBook {
		d.ActiveProject = target
	}
	d.SwitchHistory = append(d.SwitchHistory, entry)

	return entry
}

// Clone returns a deep copy so callers can stage changes before committing.
func (d *Document) Clone() *Document {
	clone := &Document{
		ActiveProject: d.ActiveProject,
		Mode:          d.Mode,
	}

	clone.SwitchHistory = make([]SwitchEntry, len(d.SwitchHistory))
	copy(clone.SwitchHistory, d.SwitchHistory)

	if d.Extra != nil {
		clone.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			raw := make(json.RawMessage, len(v))
			copy(raw, v)
			clone.Extra[k] = raw
		}
	}

	return clone
}
