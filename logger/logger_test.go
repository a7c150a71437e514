package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		wantErr    bool
	}{
		{
			name:       "JSON output mode",
			jsonOutput: true,
			wantErr:    false,
		},
		{
			name:       "Console output mode",
			jsonOutput: false,
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset global logger
			Logger = nil
			JSONOutput = false

			err := Initialize(tt.jsonOutput)
			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if Logger == nil {
					t.Error("Initialize() did not set global Logger")
				}
				if JSONOutput != tt.jsonOutput {
					t.Errorf("Initialize() JSONOutput = %v, want %v", JSONOutput, tt.jsonOutput)
				}
			}

			if Logger != nil {
				Logger.Sync()
				Logger = nil
			}
		})
	}
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{0, zapcore.WarnLevel},
		{1, zapcore.InfoLevel},
		{2, zapcore.DebugLevel},
		{3, zapcore.DebugLevel},
		{7, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		if got := VerbosityToLevel(tt.verbosity); got != tt.want {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestPackageLevelFunctionsWithNilLogger(t *testing.T) {
	// Package-level wrappers must not panic even if Logger is nil
	saved := Logger
	Logger = nil
	defer func() {
		Logger = saved
		if r := recover(); r != nil {
			t.Errorf("package-level logging panicked with nil Logger: %v", r)
		}
	}()

	Info("info")
	Infof("info %d", 1)
	Infow("info", "key", "value")
	Warn("warn")
	Warnf("warn %d", 1)
	Warnw("warn", "key", "value")
	Error("error")
	Errorf("error %d", 1)
	Errorw("error", "key", "value")
	Debug("debug")
	Debugf("debug %d", 1)
	Debugw("debug", "key", "value")
}

func TestComponentLogger(t *testing.T) {
	if err := Initialize(false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer Cleanup()

	named := ComponentLogger("engine.replan")
	if named == nil {
		t.Fatal("ComponentLogger returned nil")
	}

	child := ChildLogger(named, "run_id", "r1")
	if child == nil {
		t.Fatal("ChildLogger returned nil")
	}
}
