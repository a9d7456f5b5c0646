package environment

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeStubEngine installs a shell script that records every invocation
// and then runs the given body. It stands in for the docker CLI so the
// real subprocess path is exercised without a daemon.
func writeStubEngine(t *testing.T, body string) (exe, callLog string) {
	t.Helper()
	dir := t.TempDir()
	callLog = filepath.Join(dir, "calls.log")
	exe = filepath.Join(dir, "engine")
	script := "#!/bin/sh\necho \"$@\" >> \"" + callLog + "\"\n" + body
	if err := os.WriteFile(exe, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write stub engine: %v", err)
	}
	return exe, callLog
}

func readCalls(t *testing.T, callLog string) []string {
	t.Helper()
	data, err := os.ReadFile(callLog)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read call log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func boolPtr(b bool) *bool { return &b }

func TestStartNewContainer(t *testing.T) {
	exe, callLog := writeStubEngine(t, `case "$1" in run) echo "  abc123def  ";; esac`)

	env := NewDockerEnvironment(Config{
		Image:      "alpine",
		Cwd:        "/tmp",
		Executable: exe,
	}, WithLogger(quietLogger()))

	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if env.containerID != "abc123def" {
		t.Errorf("expected trimmed stdout as container id, got %q", env.containerID)
	}
	if !env.owns {
		t.Error("expected ownership of a freshly started container")
	}

	calls := readCalls(t, callLog)
	if len(calls) != 1 {
		t.Fatalf("expected exactly one engine call, got %d", len(calls))
	}
	call := calls[0]
	for _, part := range []string{"run -d --name miniswe-", "-w /tmp", "--rm", "alpine sleep 2h"} {
		if !strings.Contains(call, part) {
			t.Errorf("run call missing %q: %s", part, call)
		}
	}
}

func TestStartMissingImage(t *testing.T) {
	exe, callLog := writeStubEngine(t, "")

	env := NewDockerEnvironment(Config{Executable: exe}, WithLogger(quietLogger()))
	err := env.Start(context.Background())
	if !errors.Is(err, ErrMissingImage) {
		t.Fatalf("expected ErrMissingImage, got %v", err)
	}
	if calls := readCalls(t, callLog); len(calls) != 0 {
		t.Errorf("expected no engine call before the configuration error, got %v", calls)
	}
}

func TestAdoptByID(t *testing.T) {
	// A nonexistent executable proves adoption by id performs no
	// engine call at all.
	env := NewDockerEnvironment(Config{
		ContainerID: "deadbeef",
		Executable:  "/nonexistent/engine",
	}, WithLogger(quietLogger()))

	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if env.containerID != "deadbeef" {
		t.Errorf("expected verbatim container id, got %q", env.containerID)
	}
	if env.owns {
		t.Error("adopted containers must not be owned by default")
	}
}

func TestAdoptByIDForcedOwnership(t *testing.T) {
	env := NewDockerEnvironment(Config{
		ContainerID:     "deadbeef",
		ManageContainer: boolPtr(true),
		Executable:      "/nonexistent/engine",
	}, WithLogger(quietLogger()))

	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !env.owns {
		t.Error("expected forced ownership to stick")
	}
}

func TestAdoptByName(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr error
	}{
		{
			name: "running container",
			body: `case "$3" in
{{.Id}}) echo "cafebabe";;
{{.State.Running}}) echo "true";;
esac`,
			wantID: "cafebabe",
		},
		{
			name: "stopped container",
			body: `case "$3" in
{{.Id}}) echo "cafebabe";;
{{.State.Running}}) echo "false";;
esac`,
			wantErr: ErrContainerNotRunning,
		},
		{
			name:    "unresolvable name",
			body:    `:`,
			wantErr: ErrResolveContainer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exe, _ := writeStubEngine(t, tt.body)
			env := NewDockerEnvironment(Config{
				ContainerName: "already-there",
				Executable:    exe,
			}, WithLogger(quietLogger()))

			err := env.Start(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			if env.containerID != tt.wantID {
				t.Errorf("expected container id %q, got %q", tt.wantID, env.containerID)
			}
		})
	}
}

func TestExecuteEnvLayering(t *testing.T) {
	exe, callLog := writeStubEngine(t, `:`)

	hostEnv := map[string]string{"TOKEN": "from-host"}
	env := NewDockerEnvironment(Config{
		ContainerID: "deadbeef",
		Executable:  exe,
		ForwardEnv:  []string{"TOKEN", "MISSING"},
		Env:         map[string]string{"TOKEN": "explicit"},
	},
		WithLogger(quietLogger()),
		WithEnvLookup(func(key string) (string, bool) {
			v, ok := hostEnv[key]
			return v, ok
		}),
	)
	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := env.Execute(context.Background(), "true", ExecOpts{}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	calls := readCalls(t, callLog)
	if len(calls) != 1 {
		t.Fatalf("expected one exec call, got %d", len(calls))
	}
	call := calls[0]
	forwarded := strings.Index(call, "-e TOKEN=from-host")
	explicit := strings.Index(call, "-e TOKEN=explicit")
	if forwarded == -1 || explicit == -1 {
		t.Fatalf("expected both forwarded and explicit TOKEN flags: %s", call)
	}
	if forwarded > explicit {
		t.Error("explicit env must come after forwarded env so it wins")
	}
	if strings.Contains(call, "MISSING") {
		t.Errorf("absent forwarded variables must be skipped: %s", call)
	}
	if !strings.Contains(call, "deadbeef bash -lc true") {
		t.Errorf("expected login shell invocation against the handle: %s", call)
	}
}

func TestExecuteCwdOverride(t *testing.T) {
	exe, callLog := writeStubEngine(t, `:`)
	env := NewDockerEnvironment(Config{
		ContainerID: "deadbeef",
		Cwd:         "/srv",
		Executable:  exe,
	}, WithLogger(quietLogger()))
	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := env.Execute(context.Background(), "pwd", ExecOpts{Cwd: "/tmp"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := env.Execute(context.Background(), "pwd", ExecOpts{}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	calls := readCalls(t, callLog)
	if len(calls) != 2 {
		t.Fatalf("expected two exec calls, got %d", len(calls))
	}
	if !strings.Contains(calls[0], "-w /tmp") {
		t.Errorf("expected override cwd in first call: %s", calls[0])
	}
	if !strings.Contains(calls[1], "-w /srv") {
		t.Errorf("expected configured cwd in second call: %s", calls[1])
	}
}

func TestExecuteMergedOutputAndExitStatus(t *testing.T) {
	exe, _ := writeStubEngine(t, `case "$1" in
exec)
	echo "to stdout"
	echo "to stderr" >&2
	exit 3
	;;
esac`)
	env := NewDockerEnvironment(Config{
		ContainerID: "deadbeef",
		Executable:  exe,
	}, WithLogger(quietLogger()))
	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res, err := env.Execute(context.Background(), "whatever", ExecOpts{})
	if err != nil {
		t.Fatalf("a nonzero exit status must not be an error, got %v", err)
	}
	if res.ReturnCode != 3 {
		t.Errorf("expected return code 3, got %d", res.ReturnCode)
	}
	if !strings.Contains(res.Output, "to stdout") || !strings.Contains(res.Output, "to stderr") {
		t.Errorf("expected merged stdout and stderr, got %q", res.Output)
	}
}

func TestExecuteTimeout(t *testing.T) {
	exe, _ := writeStubEngine(t, `sleep 5`)
	env := NewDockerEnvironment(Config{
		ContainerID: "deadbeef",
		Executable:  exe,
		Timeout:     100 * time.Millisecond,
	}, WithLogger(quietLogger()))
	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	res, err := env.Execute(context.Background(), "sleep 5", ExecOpts{})
	if !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("expected ErrCommandTimeout, got %v", err)
	}
	if res.Output != "" {
		t.Errorf("no partial output is recovered on timeout, got %q", res.Output)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long to fire: %s", elapsed)
	}

	// The environment stays usable after a timed-out command.
	if env.containerID != "deadbeef" {
		t.Error("handle must survive a timed-out command")
	}
}

func TestExecuteBeforeStart(t *testing.T) {
	env := NewDockerEnvironment(Config{Image: "alpine"}, WithLogger(quietLogger()))
	if _, err := env.Execute(context.Background(), "true", ExecOpts{}); err == nil {
		t.Fatal("expected an error when executing before Start")
	}
}

func TestCleanupOnlyWhenOwned(t *testing.T) {
	env := NewDockerEnvironment(Config{
		ContainerID: "deadbeef",
		Executable:  "/nonexistent/engine",
	}, WithLogger(quietLogger()))
	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	env.Cleanup()
	if env.cleaned {
		t.Error("an unowned handle must never be torn down")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	exe, callLog := writeStubEngine(t, `:`)
	env := NewDockerEnvironment(Config{
		ContainerID:     "deadbeef",
		ManageContainer: boolPtr(true),
		Executable:      exe,
	}, WithLogger(quietLogger()))
	if err := env.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	env.Cleanup()
	if !env.cleaned {
		t.Fatal("expected cleanup to fire for an owned handle")
	}

	// Give the detached stop some time to hit the stub, then verify a
	// second Cleanup adds no further call.
	waitForCalls(t, callLog, 1)
	before := len(readCalls(t, callLog))
	env.Cleanup()
	time.Sleep(200 * time.Millisecond)
	if after := len(readCalls(t, callLog)); after != before {
		t.Errorf("second cleanup issued %d extra engine calls", after-before)
	}
}

func TestCleanupNeverStarted(t *testing.T) {
	env := NewDockerEnvironment(Config{Image: "alpine"}, WithLogger(quietLogger()))
	env.Cleanup() // must not panic or fire anything
	env.Cleanup()
}

func waitForCalls(t *testing.T, callLog string, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(readCalls(t, callLog)) >= n {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("stub engine never saw %d calls", n)
}
