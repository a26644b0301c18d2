package harness

// TranscriptEvent records one processed step.
type TranscriptEvent struct {
	Step     int      `json:"step"`
	Input    string   `json:"input"`
	Output   string   `json:"output,omitempty"` // rendered, as the user sees it
	Code     string   `json:"code,omitempty"`   // code of the reported condition
	Warnings []string `json:"warnings,omitempty"`
	Tx       int64    `json:"tx,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	Transcript []TranscriptEvent `json:"transcript"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// Digest is the final directory digest.
	Digest string `json:"digest"`

	// Quit is set when a step ended the session with ".q"; Fatal holds the
	// error when strict mode ended it.
	Quit  bool   `json:"quit,omitempty"`
	Fatal string `json:"fatal,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Transcript: []TranscriptEvent{},
		Errors:     []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
