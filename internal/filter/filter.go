// Package filter implements the subscriber's notification filter: a
// line-oriented rule file is compiled into an ordered set of Rules, and an
// incoming Event is admitted for display iff none of them match.
package filter

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/guillermofarina/lognotify/pkg/logging"
)

// Filter holds the compiled rule set loaded from a rule file. An event
// passes the filter (should be displayed) iff no rule matches; a rule
// matches iff all of its conditions match. This is a logical NOR over
// rules, each of which is a logical AND over conditions — the DSL is a
// suppression list, not an allow list.
type Filter struct {
	rules []*Rule
}

// Load parses the rule file at path and returns a ready-to-use Filter.
// Lines that don't match any recognized keyword are silently ignored, per
// the DSL's definition; a line carrying an unrecognized regex is logged
// and ignored rather than failing the whole load, so that one bad rule
// doesn't disable filtering entirely.
func Load(path string, logger *logging.Logger) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open rule file")
	}
	defer file.Close()

	filter := &Filter{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		filter.loadLine(scanner.Text(), logger)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to read rule file")
	}

	return filter, nil
}

// Evaluate reports whether event should be displayed: true iff no rule in
// the filter matches it.
func (f *Filter) Evaluate(event Event) bool {
	for _, rule := range f.rules {
		if rule.Matches(event) {
			return false
		}
	}
	return true
}

// currentRule returns the rule that a bare condition line (one appearing
// before any "regla" keyword) attaches to, creating an implicit initial
// rule on first use.
func (f *Filter) currentRule() *Rule {
	if len(f.rules) == 0 {
		f.rules = append(f.rules, &Rule{})
	}
	return f.rules[len(f.rules)-1]
}

// loadLine recognizes a single rule-file line and mutates the filter
// accordingly. Recognized keywords: "regla" starts a new rule; "origen",
// "fichero", and "contenido" (each with a plain or "!" negated "=" form)
// add a condition to the current rule.
func (f *Filter) loadLine(raw string, logger *logging.Logger) {
	line := strings.TrimSpace(raw)

	switch {
	case line == "":
		return
	case strings.HasPrefix(line, "regla"):
		f.rules = append(f.rules, &Rule{})
	case strings.HasPrefix(line, "origen!="):
		f.addCondition(line, senderAddressField, false, logger)
	case strings.HasPrefix(line, "origen="):
		f.addCondition(line, senderAddressField, true, logger)
	case strings.HasPrefix(line, "fichero!="):
		f.addCondition(line, nameField, false, logger)
	case strings.HasPrefix(line, "fichero="):
		f.addCondition(line, nameField, true, logger)
	case strings.HasPrefix(line, "contenido!="):
		f.addCondition(line, descriptionField, false, logger)
	case strings.HasPrefix(line, "contenido="):
		f.addCondition(line, descriptionField, true, logger)
	}
}

// addCondition extracts the regex pattern following the first "=" in line,
// compiles it, and attaches the resulting condition to the current rule.
func (f *Filter) addCondition(line string, extract func(Event) string, sign bool, logger *logging.Logger) {
	pattern := line[strings.IndexByte(line, '=')+1:]

	condition, err := newCondition(pattern, sign, extract)
	if err != nil {
		logger.Warn(errors.Wrapf(err, "ignoring malformed filter condition %q", line))
		return
	}

	f.currentRule().addCondition(condition)
}
