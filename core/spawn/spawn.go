// Package spawn starts the processes of a pipeline in a shared process group.
package spawn

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

// DefaultOutputMode is the permission of files created by `>`.
const DefaultOutputMode os.FileMode = 0644

// ErrEmptyPipeline is returned when a request has no stages.
var ErrEmptyPipeline = errors.New("empty pipeline")

// Request describes one pipeline launch.
type Request struct {
	// Stages holds the argument vector of every command, in order.
	Stages [][]string
	// Stdin redirects the input of the last stage from a file if set.
	Stdin string
	// Stdout redirects the output of the last stage to a file if set. The
	// file is created or truncated.
	Stdout string
	// Stdio are the files inherited by the pipeline ends: input of the first
	// stage, output of the last stage and the error stream of every stage.
	// Nil entries use the shell's own.
	Stdio [3]*os.File
	// Env is the environment of every stage, the shell's own if nil.
	Env []string
}

// StageError is a stage that couldn't be started. The rest of the pipeline
// runs without it, as if it had exited at once.
type StageError struct {
	Stage int
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result describes the processes started for a pipeline.
type Result struct {
	// Pgid is the process group every started stage joined.
	Pgid int
	// Pid is the representative process, the group leader.
	Pid int
	// Members holds the pid of every started stage in stage order.
	Members []int
	// Failed holds the stages that couldn't be started.
	Failed []*StageError
}

// Started reports whether any process is running.
func (r *Result) Started() bool {
	return len(r.Members) > 0
}

// Spawner forks and executes pipelines.
type Spawner struct {
	// Fs is used to search PATH.
	Fs afero.Fs
	// OutputMode is the permission of files created by `>`.
	OutputMode os.FileMode

	newPipe  func() (*os.File, *os.File, error)
	forkExec func(argv0 string, argv []string, attr *syscall.ProcAttr) (int, error)
}

// New creates a Spawner that runs programs from the real file system.
func New(outputMode os.FileMode) *Spawner {
	return &Spawner{
		Fs:         afero.NewOsFs(),
		OutputMode: outputMode,
		newPipe:    os.Pipe,
		forkExec:   syscall.ForkExec,
	}
}

// Start launches every stage of the request.
//
// Redirection files are opened and all k-1 pipes are created before anything
// is forked. Each stage joins the process group of the first stage that
// started. Every pipe and redirection descriptor is closed in the parent
// before Start returns; they're close-on-exec so only the stage they were
// handed to as stdio keeps them.
//
// If a fork fails the remaining stages aren't launched. The error is returned
// together with a result describing the stages that did start, so the caller
// can still track and reap them.
func (s *Spawner) Start(req Request) (*Result, error) {
	k := len(req.Stages)
	if k == 0 {
		return nil, ErrEmptyPipeline
	}

	var opened []*os.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	var redirIn, redirOut *os.File
	if req.Stdin != "" {
		f, err := os.Open(req.Stdin)
		if err != nil {
			return nil, redirectError(err)
		}
		opened = append(opened, f)
		redirIn = f
	}
	if req.Stdout != "" {
		f, err := os.OpenFile(req.Stdout, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.OutputMode)
		if err != nil {
			return nil, redirectError(err)
		}
		opened = append(opened, f)
		redirOut = f
	}

	// Pipe i connects the output of stage i to the input of stage i+1.
	readers := make([]*os.File, k-1)
	writers := make([]*os.File, k-1)
	for i := 0; i < k-1; i++ {
		r, w, err := s.newPipe()
		if err != nil {
			return nil, fmt.Errorf("pipe: %w", err)
		}
		opened = append(opened, r, w)
		readers[i], writers[i] = r, w
	}

	env := req.Env
	if env == nil {
		env = os.Environ()
	}
	search := lookupEnv(env, "PATH")
	stderr := orDefault(req.Stdio[2], os.Stderr)

	res := &Result{}
	for i, argv := range req.Stages {
		stdin := orDefault(req.Stdio[0], os.Stdin)
		if i > 0 {
			stdin = readers[i-1]
		}
		stdout := orDefault(req.Stdio[1], os.Stdout)
		if i < k-1 {
			stdout = writers[i]
		}
		if i == k-1 {
			if redirIn != nil {
				stdin = redirIn
			}
			if redirOut != nil {
				stdout = redirOut
			}
		}

		path, err := LookPath(s.Fs, search, argv[0])
		if err != nil {
			res.Failed = append(res.Failed, &StageError{Stage: i, Name: argv[0], Err: err})
			continue
		}

		// Fd puts the descriptors back in blocking mode for the child.
		attr := &syscall.ProcAttr{
			Env:   env,
			Files: []uintptr{stdin.Fd(), stdout.Fd(), stderr.Fd()},
			Sys: &syscall.SysProcAttr{
				Setpgid: true,
				Pgid:    res.Pgid,
			},
		}

		pid, err := s.forkExec(path, argv, attr)
		switch {
		case isForkFailure(err):
			return res, fmt.Errorf("fork: %w", err)
		case err != nil:
			res.Failed = append(res.Failed, &StageError{Stage: i, Name: argv[0], Err: err})
			continue
		}

		if res.Pgid == 0 {
			res.Pgid, res.Pid = pid, pid
		}
		res.Members = append(res.Members, pid)
	}

	return res, nil
}

// isForkFailure separates errors of fork itself from errors the child
// reported while preparing to exec.
func isForkFailure(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ENOMEM)
}

func redirectError(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w", pe.Path, pe.Err)
	}
	return err
}

func orDefault(f, def *os.File) *os.File {
	if f == nil {
		return def
	}
	return f
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	val := ""
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			// Later entries win, like os/exec.
			val = kv[len(prefix):]
		}
	}
	return val
}
