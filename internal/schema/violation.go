package schema

import "fmt"

// ViolationCode classifies a single schema violation.
type ViolationCode string

const (
	CodeParse    ViolationCode = "parse"    // document is not valid JSON
	CodeType     ViolationCode = "type"     // wrong JSON type
	CodeRequired ViolationCode = "required" // missing required property
	CodeEnum     ViolationCode = "enum"     // value outside the declared enumeration
	CodeFormat   ViolationCode = "format"   // string does not satisfy its format
	CodeMinimum  ViolationCode = "minimum"  // number below its lower bound
	CodeMaximum  ViolationCode = "maximum"  // number above its upper bound
	CodeLength   ViolationCode = "length"   // string length out of bounds
	CodePattern  ViolationCode = "pattern"  // string does not match its pattern
	CodeItems    ViolationCode = "items"    // array size out of bounds
	CodeUnique   ViolationCode = "unique"   // duplicate items in a unique array
)

// Violation describes one way a document fails its schema.
type Violation struct {
	Code    ViolationCode
	Path    string // document path of the offending value; empty for the root
	Message string
}

func (v Violation) Error() string {
	if v.Path != "" {
		return fmt.Sprintf("%s: %s", v.Path, v.Message)
	}
	return v.Message
}

// ViolationList is an ordered collection of violations. It implements error
// so a rejection can travel as a single value.
type ViolationList []Violation

// Error returns a compact summary: the first violation plus a count of the rest.
func (l ViolationList) Error() string {
	switch len(l) {
	case 0:
		return "no violations"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Messages renders every violation in order.
func (l ViolationList) Messages() []string {
	out := make([]string, len(l))
	for i, v := range l {
		out[i] = v.Error()
	}
	return out
}

// Verdict is the outcome of validating one source document. Rejection is
// expected, high-frequency traffic, not an error condition.
type Verdict struct {
	Accepted   bool
	Violations ViolationList
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject returns a rejecting verdict carrying the given violations.
func Reject(violations ...Violation) Verdict {
	return Verdict{Violations: ViolationList(violations)}
}

// Reasons renders the rejection reasons in order; empty for accepted verdicts.
func (v Verdict) Reasons() []string {
	return v.Violations.Messages()
}

// OnlyMissingRequired reports whether every violation is a missing required
// property. Records like this can be written with blank columns when their
// dataset opts in to salvage mode.
func (v Verdict) OnlyMissingRequired() bool {
	if v.Accepted || len(v.Violations) == 0 {
		return false
	}
	for _, viol := range v.Violations {
		if viol.Code != CodeRequired {
			return false
		}
	}
	return true
}
