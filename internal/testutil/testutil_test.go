package testutil

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
)

// recordingTB captures failures instead of failing the enclosing test.
type recordingTB struct {
	testing.TB
	failed bool
	msg    string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.failed = true
	r.msg = fmt.Sprintf(format, args...)
}

func (r *recordingTB) Fatalf(format string, args ...any) { r.Errorf(format, args...) }
func (r *recordingTB) Fatal(args ...any)                 { r.Errorf("%s", fmt.Sprint(args...)) }

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertStatusCode(rec, http.StatusOK, http.StatusOK)
	if rec.failed {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}

	AssertStatusCode(rec, http.StatusOK, http.StatusBadRequest)
	if !rec.failed {
		t.Fatal("expected failure on mismatched status code")
	}
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertNoError(rec, nil)
	if rec.failed {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}
	AssertNoError(rec, errors.New("boom"))
	if !rec.failed {
		t.Fatal("expected failure when error is non-nil")
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertError(rec, errors.New("test error"))
	if rec.failed {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}
	AssertError(rec, nil)
	if !rec.failed {
		t.Fatal("expected failure when error is nil")
	}
}

func TestAssertAllInf(t *testing.T) {
	t.Parallel()

	inf := math.Inf(1)
	rec := &recordingTB{TB: t}
	AssertAllInf(rec, []float64{inf, inf})
	AssertAllInf(rec, nil)
	if rec.failed {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}
	AssertAllInf(rec, []float64{inf, 4.2, inf})
	if rec.msg != "ranges[1] = 4.2, want +Inf" {
		t.Errorf("message = %q", rec.msg)
	}
}

func TestAssertAllEqual(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertAllEqual(rec, []float64{5, 5, 5}, 5)
	if rec.failed {
		t.Fatalf("unexpected failure: %s", rec.msg)
	}
	AssertAllEqual(rec, []float64{5, 5.0000001}, 5)
	if !rec.failed {
		t.Fatal("expected failure on inexact value")
	}
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodGet, "/api/lidar/scan")
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.URL.Path != "/api/lidar/scan" {
		t.Errorf("path = %s, want /api/lidar/scan", req.URL.Path)
	}
}

func TestNewTestRecorder(t *testing.T) {
	t.Parallel()

	rec := NewTestRecorder()
	if rec == nil {
		t.Fatal("recorder is nil")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("default code = %d, want 200", rec.Code)
	}
}
