package logger

// LogEntry is a single recorded event. Exactly one of the event fields is set.
type LogEntry struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	SessionID       string `json:"session_id,omitempty"`

	RunCommand   *RunCommand   `json:"run_command,omitempty"`
	JobStarted   *JobStarted   `json:"job_started,omitempty"`
	JobStatus    *JobStatus    `json:"job_status,omitempty"`
	JobFinished  *JobFinished  `json:"job_finished,omitempty"`
	BuiltinError *BuiltinError `json:"builtin_error,omitempty"`
	LaunchError  *LaunchError  `json:"launch_error,omitempty"`
}

// LogType is implemented by every event that can be recorded.
type LogType interface {
	setOn(le *LogEntry)
}

// LogType returns the event held by the entry, nil if there is none.
func (le *LogEntry) LogType() LogType {
	switch {
	case le.RunCommand != nil:
		return le.RunCommand
	case le.JobStarted != nil:
		return le.JobStarted
	case le.JobStatus != nil:
		return le.JobStatus
	case le.JobFinished != nil:
		return le.JobFinished
	case le.BuiltinError != nil:
		return le.BuiltinError
	case le.LaunchError != nil:
		return le.LaunchError
	default:
		return nil
	}
}

// RunCommand is logged for every line the shell accepts.
type RunCommand struct {
	Line    string   `json:"line"`
	Command []string `json:"command"`
	Builtin bool     `json:"builtin,omitempty"`
}

func (e *RunCommand) setOn(le *LogEntry) { le.RunCommand = e }

// JobStarted is logged when a pipeline's processes are running.
type JobStarted struct {
	JobID      int    `json:"job_id"`
	Name       string `json:"name"`
	Pid        int    `json:"pid"`
	Pgid       int    `json:"pgid"`
	Members    []int  `json:"members"`
	Background bool   `json:"background,omitempty"`
}

func (e *JobStarted) setOn(le *LogEntry) { le.JobStarted = e }

// JobStatus is logged when a live job changes status.
type JobStatus struct {
	JobID  int    `json:"job_id"`
	Name   string `json:"name"`
	Pid    int    `json:"pid"`
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
}

func (e *JobStatus) setOn(le *LogEntry) { le.JobStatus = e }

// JobFinished is logged when a job leaves the table.
type JobFinished struct {
	JobID int    `json:"job_id"`
	Name  string `json:"name"`
	Pid   int    `json:"pid"`
	// Outcome is "exited" or "killed".
	Outcome string `json:"outcome"`
}

func (e *JobFinished) setOn(le *LogEntry) { le.JobFinished = e }

// BuiltinError is logged when a built-in reports an error.
type BuiltinError struct {
	Command []string `json:"command"`
	Error   string   `json:"error"`
}

func (e *BuiltinError) setOn(le *LogEntry) { le.BuiltinError = e }

// LaunchError is logged when a line couldn't be parsed or launched in full.
type LaunchError struct {
	Line  string `json:"line"`
	Error string `json:"error"`
}

func (e *LaunchError) setOn(le *LogEntry) { le.LaunchError = e }
