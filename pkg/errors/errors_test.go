package errors

import (
	stdErrors "errors"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := Wrap(CodeDependency, cause, "redis unavailable")

	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %q", err.Code())
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable via errors.Is")
	}
}

func TestAsFindsTypedErrorThroughChain(t *testing.T) {
	inner := New(CodeRateLimitExhausted, "backoff ceiling reached")
	wrapped := Wrap(CodeInternal, inner, "run failed")

	typed := As(wrapped)
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	if typed.Code() != CodeInternal {
		t.Fatalf("expected outermost code, got %q", typed.Code())
	}
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("expected internal, got %q", got)
	}
	if got := CodeOf(New(CodeCredentialMissing, "no token")); got != CodeCredentialMissing {
		t.Fatalf("expected credential missing, got %q", got)
	}
}

func TestMetadataRetryability(t *testing.T) {
	cases := map[Code]bool{
		CodeIntegrationMissing: false,
		CodeCredentialMissing:  false,
		CodeUpstreamAPI:        false,
		CodeRateLimitExhausted: true,
		CodePersistence:        true,
		Code("UNKNOWN"):        true, // falls back to internal
	}
	for code, want := range cases {
		if got := MetadataFor(code).Retryable; got != want {
			t.Fatalf("code %s: expected retryable=%v, got %v", code, want, got)
		}
	}
}
