package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

func TestKeyring_Rotate(t *testing.T) {
	t.Run("single key never rotates", func(t *testing.T) {
		k := newKeyring([]string{"only"})
		if k.rotate() {
			t.Error("rotate() = true with one key")
		}
		idx, key := k.current()
		if idx != 0 || key != "only" {
			t.Errorf("current() = %d, %q", idx, key)
		}
	})

	t.Run("cursor wraps cyclically", func(t *testing.T) {
		k := newKeyring([]string{"a", "b", "c"})
		wantKeys := []string{"b", "c", "a", "b"}
		for i, want := range wantKeys {
			if !k.rotate() {
				t.Fatalf("rotate %d failed", i)
			}
			if _, key := k.current(); key != want {
				t.Errorf("after rotate %d: key = %q, want %q", i, key, want)
			}
		}
	})
}

func TestWithRotation_QuotaExhaustion(t *testing.T) {
	p := &Provider{
		ring:    newKeyring([]string{"a", "b", "c"}),
		clients: make([]*genai.Client, 3),
	}

	calls := 0
	err := p.withRotation(func(_ *genai.Client) error {
		calls++
		return genai.APIError{Code: 429, Message: "quota exceeded"}
	})

	if calls != 3 {
		t.Errorf("attempts = %d, want one per credential", calls)
	}
	if !inference.IsQuota(err) {
		t.Errorf("err = %v, want quota-transient", err)
	}
	// The cursor advances between attempts only, so after exhausting every
	// credential it rests on the last one tried rather than wrapping back
	// to where it started.
	if got := p.Cursor(); got != 2 {
		t.Errorf("cursor = %d, want 2", got)
	}
}

func TestWithRotation_PermanentErrorDoesNotRotate(t *testing.T) {
	p := &Provider{
		ring:    newKeyring([]string{"a", "b"}),
		clients: make([]*genai.Client, 2),
	}

	calls := 0
	err := p.withRotation(func(_ *genai.Client) error {
		calls++
		return genai.APIError{Code: 400, Message: "invalid argument"}
	})

	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
	var pe *inference.PermanentError
	if !errors.As(err, &pe) {
		t.Errorf("err = %v, want PermanentError", err)
	}
	if got := p.Cursor(); got != 0 {
		t.Errorf("cursor = %d, want 0", got)
	}
}

func TestRotationHook(t *testing.T) {
	var cursors []int
	p := &Provider{ring: newKeyring([]string{"a", "b"})}
	WithRotationHook(func(cursor int) { cursors = append(cursors, cursor) })(p)

	p.rotate()
	p.rotate()
	if len(cursors) != 2 || cursors[0] != 1 || cursors[1] != 0 {
		t.Errorf("hook cursors = %v, want [1 0]", cursors)
	}
}

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
		wantKind      inference.TransientKind
	}{
		{
			name:          "api 429",
			err:           genai.APIError{Code: 429, Message: "too many requests"},
			wantTransient: true,
			wantKind:      inference.KindQuota,
		},
		{
			name:          "resource exhausted status",
			err:           genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"},
			wantTransient: true,
			wantKind:      inference.KindQuota,
		},
		{
			name:          "quota message",
			err:           errors.New("generation failed: quota exceeded for this project"),
			wantTransient: true,
			wantKind:      inference.KindQuota,
		},
		{
			name:          "dns failure",
			err:           errors.New("dial tcp: lookup api: no such host"),
			wantTransient: true,
			wantKind:      inference.KindNetwork,
		},
		{
			name:          "connection reset",
			err:           errors.New("read: connection reset by peer"),
			wantTransient: true,
			wantKind:      inference.KindNetwork,
		},
		{
			name:          "deadline",
			err:           context.DeadlineExceeded,
			wantTransient: true,
			wantKind:      inference.KindNetwork,
		},
		{
			name: "bad request",
			err:  genai.APIError{Code: 400, Message: "invalid argument"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyErr(tc.err)
			if inference.IsTransient(got) != tc.wantTransient {
				t.Fatalf("IsTransient = %v, want %v (err: %v)", !tc.wantTransient, tc.wantTransient, got)
			}
			if tc.wantTransient {
				var te *inference.TransientError
				if !errors.As(got, &te) || te.Kind != tc.wantKind {
					t.Errorf("kind = %v, want %v", te.Kind, tc.wantKind)
				}
			} else {
				var pe *inference.PermanentError
				if !errors.As(got, &pe) {
					t.Errorf("want PermanentError, got %T", got)
				}
			}
		})
	}
}

func TestClassifyErr_PassesThroughClassified(t *testing.T) {
	// A permanent error whose message mentions a connection must stay
	// permanent instead of being reclassified as a network failure.
	orig := &inference.PermanentError{Err: errors.New("upload failed after retries: connection refused")}
	if got := classifyErr(orig); got != error(orig) {
		t.Errorf("classifyErr rewrapped a classified error: %v", got)
	}
	if isQuotaErr(orig) {
		t.Error("isQuotaErr = true for a permanent error")
	}

	quota := &inference.TransientError{Kind: inference.KindQuota, Err: errors.New("upstream quota")}
	if got := classifyErr(quota); got != error(quota) {
		t.Errorf("classifyErr rewrapped a transient error: %v", got)
	}
	if !isQuotaErr(quota) {
		t.Error("isQuotaErr = false for a quota-transient error")
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(context.Background(), nil); !errors.Is(err, inference.ErrNoCredentials) {
		t.Fatalf("err = %v, want ErrNoCredentials", err)
	}
	if _, err := New(context.Background(), []string{"", "  "}); !errors.Is(err, inference.ErrNoCredentials) {
		t.Fatalf("blank keys: err = %v, want ErrNoCredentials", err)
	}
}
