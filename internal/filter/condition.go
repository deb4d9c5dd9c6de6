package filter

import (
	"regexp"

	"github.com/pkg/errors"
)

// Event is the subset of a received notification that rules are evaluated
// against: the file that produced it, the address of the publisher that
// sent it, and the text it carries.
type Event struct {
	Name          string
	SenderAddress string
	Description   string
}

// Condition is a single regex predicate over one projected field of an
// Event. The three kinds (file/sender/content) differ only in which field
// they project, so rather than a class hierarchy per kind, a Condition
// carries its field projector directly.
type Condition struct {
	regex   *regexp.Regexp
	sign    bool
	extract func(Event) string
}

// Evaluate reports whether the condition holds for event: sign ==
// regex full-matches extract(event).
func (c Condition) Evaluate(event Event) bool {
	return c.sign == c.regex.MatchString(c.extract(event))
}

func nameField(e Event) string          { return e.Name }
func senderAddressField(e Event) string { return e.SenderAddress }
func descriptionField(e Event) string   { return e.Description }

// newCondition compiles pattern as a full-match regex and pairs it with
// extract and sign. The DSL's regex dialect is matched in full (not
// searched), so pattern is anchored on both ends before compilation.
func newCondition(pattern string, sign bool, extract func(Event) string) (Condition, error) {
	regex, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return Condition{}, errors.Wrap(err, "invalid regular expression")
	}
	return Condition{regex: regex, sign: sign, extract: extract}, nil
}
