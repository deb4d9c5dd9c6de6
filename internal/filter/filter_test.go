package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/guillermofarina/lognotify/pkg/logging"
)

func writeRules(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.conf")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("unable to write rule file: %v", err)
	}
	return path
}

func TestFilterAdmitsByDefault(t *testing.T) {
	path := writeRules(t, "")
	f, err := Load(path, logging.RootLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !f.Evaluate(Event{Name: "a.log", Description: "anything"}) {
		t.Fatal("expected event to pass an empty filter")
	}
}

func TestFilterSuppressesOnSingleRuleMatch(t *testing.T) {
	path := writeRules(t, "regla\ncontenido=.*secret.*\n")
	f, err := Load(path, logging.RootLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Evaluate(Event{Description: "leaked secret now"}) {
		t.Fatal("expected event matching the rule to be suppressed")
	}
	if !f.Evaluate(Event{Description: "nothing interesting"}) {
		t.Fatal("expected non-matching event to pass")
	}
}

func TestFilterRuleIsConjunction(t *testing.T) {
	path := writeRules(t, "regla\nfichero=a\\.log\ncontenido=.*error.*\n")
	f, err := Load(path, logging.RootLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Matches name but not content: rule requires both, so it passes.
	if !f.Evaluate(Event{Name: "a.log", Description: "all fine"}) {
		t.Fatal("expected event matching only one condition to pass")
	}
	// Matches both: rule fires, event suppressed.
	if f.Evaluate(Event{Name: "a.log", Description: "fatal error occurred"}) {
		t.Fatal("expected event matching every condition to be suppressed")
	}
}

func TestFilterImplicitInitialRule(t *testing.T) {
	// No leading "regla" line: the condition attaches to an implicit rule.
	path := writeRules(t, "origen=10\\.0\\.0\\.1\n")
	f, err := Load(path, logging.RootLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Evaluate(Event{SenderAddress: "10.0.0.1"}) {
		t.Fatal("expected matching sender address to be suppressed")
	}
}

func TestFilterNegatedCondition(t *testing.T) {
	path := writeRules(t, "regla\nfichero!=allowed\\.log\n")
	f, err := Load(path, logging.RootLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Evaluate(Event{Name: "other.log"}) {
		t.Fatal("expected non-matching name under a negated condition to be suppressed")
	}
	if !f.Evaluate(Event{Name: "allowed.log"}) {
		t.Fatal("expected matching name under a negated condition to pass")
	}
}

func TestFilterIgnoresUnrecognizedLines(t *testing.T) {
	path := writeRules(t, "# comentario\notra cosa\nregla\nfichero=x\n")
	f, err := Load(path, logging.RootLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Evaluate(Event{Name: "x"}) {
		t.Fatal("expected the one real condition to still apply")
	}
}

func TestFilterIgnoresMalformedRegex(t *testing.T) {
	// The malformed condition is dropped, leaving a rule with zero
	// conditions; a rule with no conditions matches vacuously (the AND over
	// an empty set is true), so it suppresses every event -- the same
	// surprising-but-faithful behavior as the reference implementation.
	path := writeRules(t, "regla\nfichero=[unterminated\n")
	f, err := Load(path, logging.RootLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Evaluate(Event{Name: "anything"}) {
		t.Fatal("expected a rule with only a dropped condition to match vacuously and suppress")
	}
}
