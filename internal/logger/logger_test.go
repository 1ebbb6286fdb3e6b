package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		encoding  string
		debug     bool
		wantErr   bool
		wantDebug bool
	}{
		{name: "json default", encoding: "", wantDebug: false},
		{name: "json debug", encoding: "json", debug: true, wantDebug: true},
		{name: "console", encoding: "console", wantDebug: false},
		{name: "unknown", encoding: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, err := New(tt.encoding, tt.debug)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if err := Sync(nil); err != nil {
				t.Errorf("Sync(nil) = %v", err)
			}
		})
	}
}
