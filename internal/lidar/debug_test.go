package lidar

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})

	Opsf("sensor %s started", "front")
	Diagf("scan stats: %d rays", 360)
	Tracef("scan seq=%d", 7)

	tests := []struct {
		name   string
		out    string
		prefix string
		msg    string
	}{
		{"ops", ops.String(), "[scansim] ", "sensor front started"},
		{"diag", diag.String(), "[scansim diag] ", "scan stats: 360 rays"},
		{"trace", trace.String(), "[scansim trace] ", "scan seq=7"},
	}
	for _, tt := range tests {
		if !strings.HasPrefix(tt.out, tt.prefix) || !strings.Contains(tt.out, tt.msg) {
			t.Errorf("%s output = %q, want %q prefix and %q", tt.name, tt.out, tt.prefix, tt.msg)
		}
	}
	if !TraceEnabled() {
		t.Error("expected TraceEnabled() with a trace writer")
	}
}

func TestSetLogWriters_NilDisablesStream(t *testing.T) {
	defer SetLogWriters(LogWriters{})

	var ops bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops})

	Diagf("should not appear")
	Tracef("should not appear")
	if TraceEnabled() {
		t.Error("expected TraceEnabled()=false without a trace writer")
	}

	Opsf("visible")
	if strings.Contains(ops.String(), "should not appear") {
		t.Errorf("ops stream received another stream's output: %q", ops.String())
	}
	if !strings.Contains(ops.String(), "visible") {
		t.Errorf("ops output = %q, want 'visible'", ops.String())
	}
}
