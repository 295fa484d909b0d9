// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertAllInf fails the test unless every element of ranges is +Inf.
func AssertAllInf(t testing.TB, ranges []float64) {
	t.Helper()
	for i, r := range ranges {
		if !math.IsInf(r, 1) {
			t.Errorf("ranges[%d] = %v, want +Inf", i, r)
			return
		}
	}
}

// AssertAllEqual fails the test unless every element of values equals want
// exactly.
func AssertAllEqual(t testing.TB, values []float64, want float64) {
	t.Helper()
	for i, v := range values {
		if v != want {
			t.Errorf("values[%d] = %v, want %v", i, v, want)
			return
		}
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
