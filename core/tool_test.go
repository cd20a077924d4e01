package core

import (
	"errors"
	"testing"
)

func TestFailureKind_Retryable(t *testing.T) {
	retryable := []FailureKind{FailureRateLimited, FailureTimeout, FailureTransportError}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s should be retryable", k)
		}
	}
	permanent := []FailureKind{FailureAuthError, FailureMalformedResponse, FailureNotFound}
	for _, k := range permanent {
		if k.Retryable() {
			t.Errorf("%s must not be retryable", k)
		}
	}
}

func TestToolOutcome_Err(t *testing.T) {
	ok := Success("websearch", []ToolResult{{Title: "hit"}})
	if !ok.OK() || ok.Err() != nil {
		t.Fatalf("success outcome misreported: %+v", ok)
	}

	failed := Failed("websearch", FailureRateLimited, "429 from upstream")
	if failed.OK() {
		t.Fatal("failure outcome reported OK")
	}

	var tfe *ToolFailureError
	if !errors.As(failed.Err(), &tfe) {
		t.Fatalf("expected *ToolFailureError, got %T", failed.Err())
	}
	if tfe.Kind != FailureRateLimited || tfe.Provider != "websearch" {
		t.Errorf("failure error fields wrong: %+v", tfe)
	}
}

func TestAgentError_Format(t *testing.T) {
	err := NewAgentError(AgentResearch, AgentErrCallsExhausted, "all 2 provider calls failed")
	want := "agent error [ALL_REQUIRED_CALLS_EXHAUSTED] in research: all 2 provider calls failed"
	if err.Error() != want {
		t.Errorf("error format drifted:\n got %q\nwant %q", err.Error(), want)
	}
}
