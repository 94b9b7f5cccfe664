package router

// Mode is the classification outcome.
type Mode string

const (
	// ModeBook routes to a long-form project.
	ModeBook Mode = "book"

	// ModeSession routes to a short-form session.
	ModeSession Mode = "session"

	// ModeAmbiguous means the input did not commit to either and the
	// caller should present the options.
	ModeAmbiguous Mode = "ambiguous"
)

// Signal categories, in descending book-weight order.
const (
	CategoryProjectName  = "project_name"
	CategoryContinuation = "continuation"
	CategoryChapterRef   = "chapter_ref"
	CategoryVibe         = "vibe"
	CategorySituation    = "situation"
)

// Signal is one matched category with the token that matched it.
type Signal struct {
	Category string  `json:"category"`
	Value    string  `json:"value"`
	Weight   float64 `json:"weight"`
}

// Option is one side of a clarification prompt.
type Option struct {
	Mode   Mode   `json:"mode"`
	Target string `json:"target,omitempty"`
	Label  string `json:"label"`
}

// Result is a classification outcome. When Mode is ambiguous, Options
// holds exactly two choices for the clarification prompt.
type Result struct {
	Mode       Mode     `json:"mode"`
	Target     string   `json:"target,omitempty"`
	Confidence float64  `json:"confidence"`
	Signals    []Signal `json:"signals,omitempty"`
	Options    []Option `json:"options,omitempty"`

	// Reason carries a machine-readable cause for ambiguity, such as
	// "no_active_project" or "comparable_signals".
	Reason string `json:"reason,omitempty"`
}

func (r *Result) addSignal(category, value string, weight float64) {
	r.Signals = append(r.Signals, Signal{
		Category: category,
		Value:    value,
		Weight:   weight,
	})
}
