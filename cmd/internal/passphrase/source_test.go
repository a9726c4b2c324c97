package passphrase

import (
	"errors"
	"testing"
)

func newTestSource(env map[string]string, prompt func(string) (string, error)) *Source {
	s := NewSource("NFT_TEST_PASS", "manager")
	s.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.prompt = prompt
	return s
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s := newTestSource(map[string]string{"NFT_TEST_PASS": "from-env"}, func(string) (string, error) {
		t.Fatalf("prompt should not run when the variable is set")
		return "", nil
	})
	got, err := s.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	s := newTestSource(map[string]string{"NFT_TEST_PASS": "  "}, nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error for blank passphrase")
	}
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	calls := 0
	s := newTestSource(nil, func(label string) (string, error) {
		calls++
		if label != "manager" {
			t.Fatalf("unexpected label %q", label)
		}
		return "typed", nil
	})
	for i := 0; i < 3; i++ {
		got, err := s.Get()
		if err != nil || got != "typed" {
			t.Fatalf("unexpected result %q, %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single prompt, got %d", calls)
	}
}

func TestSourceWithoutTerminalNamesVariable(t *testing.T) {
	s := newTestSource(nil, func(string) (string, error) { return "", errNoTerminal })
	_, err := s.Get()
	if err == nil || errors.Is(err, errNoTerminal) {
		t.Fatalf("expected a hint naming the variable, got %v", err)
	}
}
