package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/josephlewis42/jobsh/core/jobs"
	"golang.org/x/sys/unix"
)

// AllBuiltins holds a list of all registered shell builtins
var AllBuiltins = make(map[string]ShellBuiltin)

type ShellBuiltin interface {
	Main(s *Shell, args []string) int
}

type ShellBuiltinFunc func(s *Shell, args []string) int

func (f ShellBuiltinFunc) Main(s *Shell, args []string) int {
	return f(s, args)
}

var _ ShellBuiltin = (ShellBuiltinFunc)(nil)

// BuiltinNames returns the names of every built-in, sorted.
func BuiltinNames() []string {
	var names []string
	for k := range AllBuiltins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Exit quits the shell
func Exit(s *Shell, args []string) int {
	status := s.lastStatus
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			s.builtinError(args, fmt.Sprintf("exit: %s: numeric argument required", args[1]))
			n = StatusSyntaxError
		}
		status = n
	}

	s.quit = true
	return status
}

// Cd is the cd shell builtin
func Cd(s *Shell, args []string) int {
	var dir string
	switch len(args) {
	case 1:
		dir = "~"
	case 2:
		dir = args[1]
	default:
		s.builtinError(args, "cd: too many arguments")
		return StatusFailure
	}

	target, err := expandHome(dir)
	if err != nil {
		s.builtinError(args, fmt.Sprintf("cd: %v", err))
		return StatusFailure
	}

	if err := os.Chdir(target); err != nil {
		s.builtinError(args, fmt.Sprintf("cd: %s: %v", dir, unwrapPathError(err)))
		return StatusFailure
	}

	if wd, err := os.Getwd(); err == nil {
		os.Setenv("OLDPWD", os.Getenv("PWD"))
		os.Setenv("PWD", wd)
	}
	return 0
}

func expandHome(dir string) (string, error) {
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("HOME not set")
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
}

// unwrapPathError drops the operation and path so only the system error text
// is left.
func unwrapPathError(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// Jobs lists the jobs of the shell
func Jobs(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "jobs",
		Short: "Display status of jobs.",
	}

	return cmd.Run(s, args, func() int {
		list := s.Jobs.List()
		fmt.Fprintf(s.Out, "# Active Jobs: %d\n", len(list))
		for i, j := range list {
			fmt.Fprintf(s.Out, "[%d] %d, %s, %s\n", i+1, j.Pid, j.Name, j.Status)
		}
		return 0
	})
}

// resolveJob finds the job named by a "%n" table reference, or the most
// recent job if ref is empty. The returned string names the reference in
// error messages.
func (s *Shell) resolveJob(ref string) (jobs.Job, string, error) {
	if ref == "" {
		job, ok := s.Jobs.FindMostRecent()
		if !ok {
			return jobs.Job{}, "current", ErrNoSuchJob
		}
		return job, "", nil
	}

	name := strings.TrimPrefix(ref, "%")
	n, err := strconv.Atoi(name)
	if err != nil {
		return jobs.Job{}, name, ErrNoSuchJob
	}
	job, ok := s.Jobs.FindByIndex(n - 1)
	if !ok {
		return jobs.Job{}, name, ErrNoSuchJob
	}
	return job, name, nil
}

// Fg moves a job to the foreground
func Fg(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "fg [%n]",
		Short: "Move job to the foreground, continuing it if it's stopped.",
	}

	return cmd.Run(s, args, func() int {
		job, name, err := s.resolveJob(firstArg(cmd.Flags().Args()))
		if err != nil {
			s.builtinError(args, fmt.Sprintf("fg: %s: %v", name, err))
			return StatusFailure
		}

		fmt.Fprintln(s.Out, job.Name)
		status, err := s.putJobForeground(job, job.Status.Stopped())
		if err != nil {
			s.builtinError(args, fmt.Sprintf("fg: %s: %v", job.Name, err))
		}
		return status
	})
}

// Bg continues a stopped job in the background
func Bg(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "bg [%n]",
		Short: "Continue a stopped job in the background.",
	}

	return cmd.Run(s, args, func() int {
		job, name, err := s.resolveJob(firstArg(cmd.Flags().Args()))
		if err != nil {
			s.builtinError(args, fmt.Sprintf("bg: %s: %v", name, err))
			return StatusFailure
		}

		if err := s.putJobBackground(job, job.Status.Stopped()); err != nil {
			s.builtinError(args, fmt.Sprintf("bg: %s: %v", job.Name, err))
			return StatusFailure
		}
		fmt.Fprintln(s.Out, job.Notice("Running"))
		return 0
	})
}

// Kill signals a job
func Kill(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "kill [-s SIGNAL] [%n | pid]",
		Short: "Send a signal to a job, TERM by default.",
	}
	sigName := cmd.Flags().StringLong("signal", 's', "TERM", "signal to send", "SIGNAL")

	return cmd.Run(s, args, func() int {
		sig, ok := parseSignal(*sigName)
		if !ok {
			s.builtinError(args, fmt.Sprintf("kill: %s: invalid signal specification", *sigName))
			return StatusFailure
		}

		target := firstArg(cmd.Flags().Args())
		var job jobs.Job
		switch {
		case target == "" || strings.HasPrefix(target, "%"):
			var name string
			var err error
			job, name, err = s.resolveJob(target)
			if err != nil {
				s.builtinError(args, fmt.Sprintf("kill: %s: %v", name, err))
				return StatusFailure
			}

		default:
			pid, err := strconv.Atoi(target)
			if err != nil {
				s.builtinError(args, fmt.Sprintf("kill: %s: arguments must be process or job IDs", target))
				return StatusFailure
			}
			found, ok := s.Jobs.FindByPid(pid)
			if !ok {
				s.builtinError(args, fmt.Sprintf("kill: %d: no such PID", pid))
				return StatusFailure
			}
			job = found
		}

		if err := unix.Kill(job.Pid, sig); err != nil {
			s.builtinError(args, fmt.Sprintf("kill: %d: %v", job.Pid, err))
			return StatusFailure
		}
		// Stopped processes only act on the signal once they run again.
		if job.Status.Stopped() && sig != unix.SIGCONT {
			if err := unix.Kill(-job.Pgid, unix.SIGCONT); err != nil {
				s.log.Printf("couldn't continue %q: %v", job.Name, err)
			}
		}
		return 0
	})
}

// parseSignal accepts names with or without the SIG prefix and numbers.
func parseSignal(name string) (syscall.Signal, bool) {
	if n, err := strconv.Atoi(name); err == nil {
		if n <= 0 || n > 64 {
			return 0, false
		}
		return syscall.Signal(n), true
	}

	want := strings.ToUpper(name)
	if !strings.HasPrefix(want, "SIG") {
		want = "SIG" + want
	}
	for n := 1; n <= 64; n++ {
		if unix.SignalName(syscall.Signal(n)) == want {
			return syscall.Signal(n), true
		}
	}
	return 0, false
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// History shows entered lines
func History(s *Shell, args []string) int {
	cmd := &SimpleCommand{
		Use:   "history [-c]",
		Short: "Display or manipulate the history list.",
	}
	clear := cmd.Flags().Bool('c', "clear the history by deleting all entries")

	return cmd.Run(s, args, func() int {
		if *clear {
			if s.Readline != nil {
				s.Readline.Operation.ResetHistory()
			}
			s.history = nil
			return 0
		}

		for i, line := range s.history {
			fmt.Fprintf(s.Out, "% 5d  %s\n", i+1, line)
		}
		return 0
	})
}

// Help lists the builtins or shows help for some of them
func Help(s *Shell, args []string) int {
	w := s.Out
	if len(args) > 1 {
		status := 0
		for _, name := range args[1:] {
			builtin, ok := AllBuiltins[name]
			if !ok {
				s.builtinError(args, fmt.Sprintf("help: no help topics match `%s'", name))
				status = StatusFailure
				continue
			}
			builtin.Main(s, []string{name, "--help"})
		}
		return status
	}

	fmt.Fprintln(w, "jobsh, a shell with job control")
	fmt.Fprintln(w, "These shell commands are defined internally.  Type `help' to see this list.")
	fmt.Fprintln(w, "Type `help name' to find out more about the function `name'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Builtins:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(BuiltinNames(), "\n"))

	return 0
}

func init() {
	AllBuiltins["cd"] = ShellBuiltinFunc(Cd)
	AllBuiltins["exit"] = ShellBuiltinFunc(Exit)
	AllBuiltins["jobs"] = ShellBuiltinFunc(Jobs)
	AllBuiltins["fg"] = ShellBuiltinFunc(Fg)
	AllBuiltins["bg"] = ShellBuiltinFunc(Bg)
	AllBuiltins["kill"] = ShellBuiltinFunc(Kill)
	AllBuiltins["history"] = ShellBuiltinFunc(History)
	AllBuiltins["help"] = ShellBuiltinFunc(Help)
}
