package logger

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunCommand RunCommandReport `json:"run_command_report"`
	Jobs       JobReport        `json:"job_report"`
	Errors     *ErrorReport     `json:"error_report"`
}

// NewReport creates an empty Report.
func NewReport() *Report {
	return &Report{Errors: NewErrorReport()}
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch event := le.LogType().(type) {
	case *RunCommand:
		r.RunCommand.update(event)
	case *JobStarted:
		r.Jobs.updateStarted(event)
	case *JobStatus:
		r.Jobs.updateStatus(event)
	case *JobFinished:
		r.Jobs.updateFinished(event)
	case *BuiltinError, *LaunchError:
		r.Errors.Update(le)
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%T", event))
	}
}

type RunCommandReport struct {
	// Name of the command and its counts.
	CommandNames StrCounter `json:"command_names"`
	// Built-ins that were run and their counts.
	Builtins StrCounter `json:"builtins"`
}

func (r *RunCommandReport) update(rc *RunCommand) {
	if len(rc.Command) == 0 {
		return
	}
	if rc.Builtin {
		r.Builtins.Increment(rc.Command[0])
	} else {
		r.CommandNames.Increment(rc.Command[0])
	}
}

type JobReport struct {
	Started    int `json:"started"`
	Background int `json:"background"`
	// Largest number of stages in one pipeline.
	MaxStages int `json:"max_stages"`
	// Status changes of live jobs and their counts.
	Statuses StrCounter `json:"statuses"`
	// How jobs left the table and their counts.
	Outcomes StrCounter `json:"outcomes"`
}

func (r *JobReport) updateStarted(e *JobStarted) {
	r.Started++
	if e.Background {
		r.Background++
	}
	if len(e.Members) > r.MaxStages {
		r.MaxStages = len(e.Members)
	}
}

func (r *JobReport) updateStatus(e *JobStatus) {
	r.Statuses.Increment(e.Status)
}

func (r *JobReport) updateFinished(e *JobFinished) {
	r.Outcomes.Increment(e.Outcome)
}

// NewErrorReport creates an empty ErrorReport.
func NewErrorReport() *ErrorReport {
	return &ErrorReport{
		BuiltinErrors: NewPathCounter("command", "error"),
		LaunchErrors:  NewPathCounter("error"),
	}
}

// ErrorReport pulls events where the user hit an error.
type ErrorReport struct {
	BuiltinErrors *PathCounter `json:"builtin_errors"`
	LaunchErrors  *PathCounter `json:"launch_errors"`
}

func (r *ErrorReport) Update(le *LogEntry) {
	switch event := le.LogType().(type) {
	case *BuiltinError:
		name := ""
		if len(event.Command) > 0 {
			name = event.Command[0]
		}
		r.BuiltinErrors.Increment(name, event.Error)
	case *LaunchError:
		r.LaunchErrors.Increment(event.Error)
	}
}

// SessionReport groups commands by the session that ran them.
type SessionReport struct {
	// Map of sessionID -> session
	sessions map[string]*Session
}

type Session struct {
	LogEntries int      `json:"log_entries"`
	Commands   []string `json:"commands"`
	Jobs       int      `json:"jobs"`
	Errors     int      `json:"errors"`
}

func (s *Session) Update(le *LogEntry) {
	s.LogEntries++

	switch event := le.LogType().(type) {
	case *RunCommand:
		s.Commands = append(s.Commands, event.Line)
	case *JobStarted:
		s.Jobs++
	case *BuiltinError, *LaunchError:
		s.Errors++
	}
}

func (r *SessionReport) init() {
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
}

// MarshalJSON implements custom JSON marshaler.
func (r *SessionReport) MarshalJSON() ([]byte, error) {
	r.init()

	return json.Marshal(r.sessions)
}

func (r *SessionReport) Update(le *LogEntry) {
	r.init()

	if le.SessionID == "" {
		return
	}
	session, ok := r.sessions[le.SessionID]
	if !ok {
		session = &Session{}
		r.sessions[le.SessionID] = session
	}

	session.Update(le)
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for a key.
func (s StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implements custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implements custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
