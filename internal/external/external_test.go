package external

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"Jobsh/internal/command"
	"Jobsh/internal/redirect"
)

func stages(cmds ...[]string) []command.Stage {
	var out []command.Stage
	for _, args := range cmds {
		out = append(out, command.Stage{Node: command.NewNode(args...)})
	}
	return out
}

// capture returns streams whose stdout and stderr go to temporary files.
func capture(t *testing.T) (redirect.Streams, string, string) {

	t.Helper()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "stdout")
	errPath := filepath.Join(dir, "stderr")

	out, err := os.Create(outPath)
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })

	errFile, err := os.Create(errPath)
	require.NoError(t, err)
	t.Cleanup(func() { errFile.Close() })

	return redirect.Streams{nil, out, errFile}, outPath, errPath

}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLaunchPipeline(t *testing.T) {

	streams, outPath, _ := capture(t)

	group, err := Launch(stages([]string{"echo", "hi"}, []string{"cat"}), Options{Streams: streams})
	require.NoError(t, err)

	pids := group.PIDs()
	require.Len(t, pids, 2)
	assert.Equal(t, pids[0], group.PGID)
	assert.Equal(t, pids[0], group.Procs[0].Node.PID)

	// Every stage joined the group of the first one; uncollected children
	// keep their group until they are waited on.
	for _, pid := range pids {
		pgid, err := unix.Getpgid(pid)
		require.NoError(t, err)
		assert.Equal(t, group.PGID, pgid, "pid %d", pid)
	}
	assert.NotEqual(t, unix.Getpgrp(), group.PGID)

	status, err := group.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Empty(t, group.Pending())

	assert.Equal(t, "hi\n", read(t, outPath))

}

func TestPipelineStatusIsLastStage(t *testing.T) {

	tests := []struct {
		name   string
		stages []command.Stage
		want   int
	}{
		{"true | false", stages([]string{"true"}, []string{"false"}), 1},
		{"false | true", stages([]string{"false"}, []string{"true"}), 0},
		{"exit 3", stages([]string{"sh", "-c", "exit 3"}), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group, err := Launch(tt.stages, Options{})
			require.NoError(t, err)
			status, err := group.Wait()
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}

}

func TestSignalledStageStatus(t *testing.T) {

	group, err := Launch(stages([]string{"sh", "-c", "kill -TERM $$"}), Options{})
	require.NoError(t, err)

	status, err := group.Wait()
	require.NoError(t, err)
	assert.Equal(t, 128+int(unix.SIGTERM), status)

}

func TestCommandNotFound(t *testing.T) {

	streams, _, errPath := capture(t)

	group, err := Launch(stages([]string{"echo", "hi"}, []string{"jobsh-no-such-command"}), Options{Streams: streams})
	require.NoError(t, err)
	require.Len(t, group.Procs, 2)

	missing := group.Procs[1]
	assert.Equal(t, command.Unstarted, missing.PID)
	assert.Equal(t, StatusNotFound, missing.Status)

	var execErr *ExecError
	require.ErrorAs(t, missing.Err, &execErr)
	assert.Equal(t, "jobsh-no-such-command: command not found", execErr.Error())

	status, err := group.Wait()
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
	assert.Contains(t, read(t, errPath), "jobsh: jobsh-no-such-command: command not found")

}

func TestCommandNotExecutable(t *testing.T) {

	path := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(path, []byte("echo nope\n"), 0o644))

	streams, _, _ := capture(t)

	group, err := Launch(stages([]string{path}), Options{Streams: streams})
	require.NoError(t, err)

	status, err := group.Wait()
	require.NoError(t, err)
	assert.Equal(t, StatusNotExecutable, status)

}

func TestRedirectFailureKeepsStageAccounted(t *testing.T) {

	streams, outPath, errPath := capture(t)
	missing := filepath.Join(t.TempDir(), "missing.txt")

	first := command.Stage{
		Node:      command.NewNode("cat"),
		Redirects: []*command.Node{{PID: command.Unstarted, Redirect: command.StdinFromFile, Target: missing}},
	}
	pipeline := append([]command.Stage{first}, stages([]string{"wc", "-l"})...)

	group, err := Launch(pipeline, Options{Streams: streams})
	require.NoError(t, err)

	assert.Equal(t, command.Unstarted, group.Procs[0].PID)
	assert.Equal(t, StatusRedirectFailed, group.Procs[0].Status)
	assert.Len(t, group.PIDs(), 1)

	status, err := group.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	assert.Equal(t, "0", strings.TrimSpace(read(t, outPath)))
	assert.Contains(t, read(t, errPath), missing)

}

func TestLongPipelineSeesEndOfStream(t *testing.T) {

	streams, outPath, _ := capture(t)

	cmds := [][]string{{"echo", "hi"}}
	for i := 0; i < 8; i++ {
		cmds = append(cmds, []string{"cat"})
	}

	group, err := Launch(stages(cmds...), Options{Streams: streams})
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		status, _ := group.Wait()
		done <- status
	}()

	select {
	case status := <-done:
		assert.Equal(t, 0, status)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not terminate; a pipe end was left open")
	}

	assert.Equal(t, "hi\n", read(t, outPath))

}

func TestLaunchEmptyPipeline(t *testing.T) {
	_, err := Launch(nil, Options{})
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 3, StatusOf(unix.WaitStatus(3<<8)))
	assert.Equal(t, 128+int(unix.SIGKILL), StatusOf(unix.WaitStatus(unix.SIGKILL)))
}

func TestTryWaitRunningProcess(t *testing.T) {

	group, err := Launch(stages([]string{"sleep", "5"}), Options{})
	require.NoError(t, err)
	pid := group.PIDs()[0]

	_, done, err := TryWait(pid)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, unix.Kill(pid, unix.SIGKILL))

	status, err := WaitPID(pid)
	require.NoError(t, err)
	assert.Equal(t, 128+int(unix.SIGKILL), status)

}

func TestWaitOrStopReportsStoppedProcess(t *testing.T) {

	group, err := Launch(stages([]string{"sh", "-c", "kill -STOP $$; exit 5"}), Options{})
	require.NoError(t, err)
	pid := group.PIDs()[0]

	_, stopped, err := WaitOrStop(pid)
	require.NoError(t, err)
	assert.True(t, stopped)

	require.NoError(t, unix.Kill(pid, unix.SIGCONT))

	status, stopped, err := WaitOrStop(pid)
	require.NoError(t, err)
	assert.False(t, stopped)
	assert.Equal(t, 5, status)

}
