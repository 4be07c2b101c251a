package models

import "time"

// CommandResult is the outcome of one queue line.
type CommandResult struct {
	Index    int           `json:"index"`
	Line     string        `json:"line"`
	Op       string        `json:"op"`
	Output   string        `json:"output,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the command succeeded.
func (r CommandResult) OK() bool { return r.Err == nil }

// BatchReport collects every line of one drained batch.
type BatchReport struct {
	ID       string          `json:"id"`
	Source   string          `json:"source"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Results  []CommandResult `json:"results"`
}

// Failed counts the commands that returned an error.
func (b BatchReport) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
