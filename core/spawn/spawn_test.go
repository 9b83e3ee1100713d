package spawn

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forkCall struct {
	path  string
	argv  []string
	files []uintptr
	pgid  int
}

// fakeSpawner records pipes and forks instead of creating processes.
type fakeSpawner struct {
	*Spawner
	pipes   [][2]*os.File
	pipeFds [][2]uintptr
	calls   []forkCall
	nextPid int
	failOn  map[string]error
}

func newFakeSpawner(t *testing.T) *fakeSpawner {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for _, name := range []string{"ls", "wc", "cat", "sort", "uniq"} {
		require.NoError(t, afero.WriteFile(fsys, "/bin/"+name, nil, 0755))
	}

	f := &fakeSpawner{nextPid: 100, failOn: map[string]error{}}
	f.Spawner = &Spawner{
		Fs:         fsys,
		OutputMode: DefaultOutputMode,
		newPipe: func() (*os.File, *os.File, error) {
			r, w, err := os.Pipe()
			if err == nil {
				f.pipes = append(f.pipes, [2]*os.File{r, w})
				f.pipeFds = append(f.pipeFds, [2]uintptr{r.Fd(), w.Fd()})
			}
			return r, w, err
		},
		forkExec: func(path string, argv []string, attr *syscall.ProcAttr) (int, error) {
			f.calls = append(f.calls, forkCall{
				path:  path,
				argv:  argv,
				files: append([]uintptr(nil), attr.Files...),
				pgid:  attr.Sys.Pgid,
			})
			if err, ok := f.failOn[argv[0]]; ok {
				return 0, err
			}
			f.nextPid++
			return f.nextPid, nil
		},
	}
	return f
}

func testRequest(stages ...[]string) Request {
	return Request{Stages: stages, Env: []string{"PATH=/bin"}}
}

func assertClosed(t *testing.T, f *os.File) {
	t.Helper()
	_, err := f.Write([]byte{0})
	assert.True(t, errors.Is(err, os.ErrClosed), "%s still open: %v", f.Name(), err)
}

func TestStartCreatesOnePipeBetweenStages(t *testing.T) {
	cases := map[string]struct {
		stages    [][]string
		wantPipes int
	}{
		"single": {stages: [][]string{{"ls"}}, wantPipes: 0},
		"two":    {stages: [][]string{{"ls"}, {"wc", "-l"}}, wantPipes: 1},
		"four":   {stages: [][]string{{"cat"}, {"sort"}, {"uniq"}, {"wc"}}, wantPipes: 3},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			f := newFakeSpawner(t)

			res, err := f.Start(testRequest(tc.stages...))
			require.NoError(t, err)

			assert.Len(t, f.pipes, tc.wantPipes)
			assert.Len(t, f.calls, len(tc.stages))
			assert.Len(t, res.Members, len(tc.stages))
			for _, p := range f.pipes {
				assertClosed(t, p[0])
				assertClosed(t, p[1])
			}
		})
	}
}

func TestStartSharesProcessGroup(t *testing.T) {
	f := newFakeSpawner(t)

	res, err := f.Start(testRequest([]string{"cat"}, []string{"sort"}, []string{"wc"}))
	require.NoError(t, err)

	assert.Equal(t, 101, res.Pgid)
	assert.Equal(t, 101, res.Pid)
	assert.Equal(t, []int{101, 102, 103}, res.Members)
	assert.Equal(t, 0, f.calls[0].pgid, "leader creates the group")
	assert.Equal(t, 101, f.calls[1].pgid)
	assert.Equal(t, 101, f.calls[2].pgid)
	assert.Equal(t, "/bin/sort", f.calls[1].path)
	assert.Equal(t, []string{"sort"}, f.calls[1].argv)
}

func TestStartWiresPipes(t *testing.T) {
	f := newFakeSpawner(t)

	stdin, stdout, stderr := os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd()
	_, err := f.Start(testRequest([]string{"cat"}, []string{"sort"}, []string{"wc"}))
	require.NoError(t, err)

	require.Len(t, f.pipes, 2)
	require.Len(t, f.calls, 3)

	assert.Equal(t, stdin, f.calls[0].files[0])
	assert.Equal(t, f.pipeFds[0][1], f.calls[0].files[1])
	assert.Equal(t, f.pipeFds[0][0], f.calls[1].files[0])
	assert.Equal(t, f.pipeFds[1][1], f.calls[1].files[1])
	assert.Equal(t, f.pipeFds[1][0], f.calls[2].files[0])
	assert.Equal(t, stdout, f.calls[2].files[1])
	for _, c := range f.calls {
		assert.Equal(t, stderr, c.files[2])
	}
}

func TestStartMissingCommand(t *testing.T) {
	f := newFakeSpawner(t)

	res, err := f.Start(testRequest([]string{"doesnotexist123"}, []string{"wc"}))
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, 0, res.Failed[0].Stage)
	assert.EqualError(t, res.Failed[0], "doesnotexist123: command not found")
	assert.ErrorIs(t, res.Failed[0], ErrNotFound)

	assert.True(t, res.Started())
	assert.Equal(t, []int{101}, res.Members)
	assert.Equal(t, 101, res.Pgid, "first started stage leads the group")
	assert.Len(t, f.pipes, 1)
}

func TestStartNothingStarted(t *testing.T) {
	f := newFakeSpawner(t)

	res, err := f.Start(testRequest([]string{"doesnotexist123"}))
	require.NoError(t, err)
	assert.False(t, res.Started())
	assert.Empty(t, f.calls)
}

func TestStartExecFailure(t *testing.T) {
	f := newFakeSpawner(t)
	f.failOn["cat"] = syscall.ENOEXEC

	res, err := f.Start(testRequest([]string{"cat"}, []string{"wc"}))
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0], syscall.ENOEXEC)
	assert.Equal(t, []int{101}, res.Members)
	assert.Equal(t, 0, f.calls[1].pgid, "wc leads since cat never started")
}

func TestStartForkFailureAborts(t *testing.T) {
	f := newFakeSpawner(t)
	f.failOn["sort"] = syscall.EAGAIN

	res, err := f.Start(testRequest([]string{"cat"}, []string{"sort"}, []string{"wc"}))
	assert.ErrorIs(t, err, syscall.EAGAIN)
	require.NotNil(t, res)
	assert.Equal(t, []int{101}, res.Members, "started stages are still reported")
	assert.Len(t, f.calls, 2, "wc isn't launched")
	for _, p := range f.pipes {
		assertClosed(t, p[0])
		assertClosed(t, p[1])
	}
}

func TestStartRedirectOpenFailure(t *testing.T) {
	f := newFakeSpawner(t)

	req := testRequest([]string{"cat"})
	req.Stdin = filepath.Join(t.TempDir(), "missing.txt")
	res, err := f.Start(req)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, strings.HasSuffix(err.Error(), "missing.txt: no such file or directory"), err.Error())
	assert.Empty(t, f.calls)
}

func TestStartEmpty(t *testing.T) {
	f := newFakeSpawner(t)
	_, err := f.Start(Request{})
	assert.ErrorIs(t, err, ErrEmptyPipeline)
}

func waitAll(t *testing.T, pids []int) []syscall.WaitStatus {
	t.Helper()
	var out []syscall.WaitStatus
	for _, pid := range pids {
		var ws syscall.WaitStatus
		_, err := syscall.Wait4(pid, &ws, 0, nil)
		require.NoError(t, err)
		out = append(out, ws)
	}
	return out
}

func TestStartRealPipeline(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	s := New(0600)
	res, err := s.Start(Request{
		Stages: [][]string{
			{"sh", "-c", "echo hello pipeline"},
			{"tr", "a-z", "A-Z"},
		},
		Stdout: out,
	})
	require.NoError(t, err)
	require.Empty(t, res.Failed)
	require.Len(t, res.Members, 2)

	pgid, err := syscall.Getpgid(res.Members[1])
	if err == nil {
		assert.Equal(t, res.Pgid, pgid)
	}

	for _, ws := range waitAll(t, res.Members) {
		assert.True(t, ws.Exited())
		assert.Equal(t, 0, ws.ExitStatus())
	}

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "HELLO PIPELINE\n", string(got))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestStartRealRedirectInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("b\na\nc\n"), 0644))
	require.NoError(t, os.WriteFile(out, []byte("stale contents that get truncated\n"), 0644))

	res, err := New(DefaultOutputMode).Start(Request{
		Stages: [][]string{{"sort"}},
		Stdin:  in,
		Stdout: out,
	})
	require.NoError(t, err)
	waitAll(t, res.Members)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(got))
}
