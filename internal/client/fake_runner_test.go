package client

import (
	"context"
	"os"
	"testing"
)

// fakeRunner records invocations and delegates to injected behavior.
type fakeRunner struct {
	calls []fakeCall
	run   func(ctx context.Context, dir, name string, args ...string) (CommandResult, error)
}

type fakeCall struct {
	dir  string
	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, fakeCall{dir: dir, name: name, args: append([]string{}, args...)})
	if f.run == nil {
		return CommandResult{Command: name, Args: args}, nil
	}
	return f.run(ctx, dir, name, args...)
}

// argValue returns the value following flag in args.
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
