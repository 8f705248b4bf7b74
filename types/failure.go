package types

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Frame is one entry of a failure stack trace.
type Frame struct {
	File     string `json:"filename"`
	Function string `json:"name"`
	Line     int    `json:"lineno"`
	Source   string `json:"line,omitempty"` // Source text of the line, when readable
}

// Failure is the diagnostic record of a task whose slot returned an error
// or panicked.
type Failure struct {
	Kind     string    `json:"type"`    // Dynamic type of the error or panic value
	Message  string    `json:"message"` // Error text
	Worker   string    `json:"thread"`  // Name of the worker that ran the task
	Signal   string    `json:"signal,omitempty"`
	TaskID   string    `json:"task_id,omitempty"`
	Priority Priority  `json:"priority,omitempty"`
	Panic    bool      `json:"panic,omitempty"`
	Time     time.Time `json:"time"`
	Trace    []Frame   `json:"trace"`
	Err      error     `json:"-"`
}

// Error implements error so a Failure can travel through error channels.
func (f *Failure) Error() string {
	return f.Kind + ": " + f.Message
}

// Unwrap returns the original slot error, if any.
func (f *Failure) Unwrap() error {
	return f.Err
}

// JSON renders the record as indented JSON.
func (f *Failure) JSON() ([]byte, error) {
	return json.MarshalIndent(f, "", "    ")
}
