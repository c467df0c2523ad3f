package main

import (
	"errors"
	"testing"
)

type fakeMigrator struct {
	calls   []string
	steps   int
	version int
	err     error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.err
}

func (f *fakeMigrator) Down(steps int) error {
	f.calls = append(f.calls, "down")
	f.steps = steps
	return f.err
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.version = version
	return f.err
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return 3, false, f.err
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args    []string
		wantCmd string
		wantArg int
		wantErr bool
	}{
		{nil, "up", 0, false},
		{[]string{"up"}, "up", 0, false},
		{[]string{"version"}, "version", 0, false},
		{[]string{"down", "2"}, "down", 2, false},
		{[]string{"force", "0"}, "force", 0, false},
		{[]string{"down"}, "", 0, true},
		{[]string{"down", "0"}, "", 0, true},
		{[]string{"force", "x"}, "", 0, true},
		{[]string{"sideways"}, "", 0, true},
	}

	for _, tt := range tests {
		cmd, arg, err := parseArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if cmd != tt.wantCmd || arg != tt.wantArg {
			t.Errorf("parseArgs(%v) = %q, %d; want %q, %d", tt.args, cmd, arg, tt.wantCmd, tt.wantArg)
		}
	}
}

func TestExecute(t *testing.T) {
	f := &fakeMigrator{}
	if err := execute(f, "down", 2); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if f.steps != 2 {
		t.Errorf("steps = %d, want 2", f.steps)
	}

	if err := execute(f, "force", 5); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if f.version != 5 {
		t.Errorf("version = %d, want 5", f.version)
	}

	f.err = errors.New("dirty database")
	if err := execute(f, "up", 0); err == nil {
		t.Error("expected error to propagate")
	}
	if err := execute(f, "version", 0); err == nil {
		t.Error("expected version error to propagate")
	}
}
