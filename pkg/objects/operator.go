package objects

import (
	"regexp"
	"strings"
)

// Operator identifies a transit provider. The built-in constants cover the
// operators present in the dataset; any other value is treated as an
// extension operator known only by its lowercased name.
type Operator string

const (
	OperatorKMB       Operator = "kmb"
	OperatorCTB       Operator = "ctb"
	OperatorNLB       Operator = "nlb"
	OperatorMTRBus    Operator = "mtr-bus"
	OperatorGMB       Operator = "gmb"
	OperatorLightRail Operator = "lightRail"
	OperatorMTR       Operator = "mtr"
)

var builtInOperators = []Operator{
	OperatorKMB,
	OperatorCTB,
	OperatorNLB,
	OperatorMTRBus,
	OperatorGMB,
	OperatorLightRail,
	OperatorMTR,
}

var operatorStopIDPatterns = map[Operator]*regexp.Regexp{
	OperatorKMB:       regexp.MustCompile(`^[0-9A-Z]{16}$`),
	OperatorCTB:       regexp.MustCompile(`^[0-9]{6}$`),
	OperatorNLB:       regexp.MustCompile(`^[0-9]{1,4}$`),
	OperatorMTRBus:    regexp.MustCompile(`^[A-Z]?[0-9]{1,3}[A-Z]?-[A-Z][0-9]{3}$`),
	OperatorGMB:       regexp.MustCompile(`^[0-9]{8}$`),
	OperatorLightRail: regexp.MustCompile(`^LR[0-9]+$`),
	OperatorMTR:       regexp.MustCompile(`^[A-Z]{3}$`),
}

var operatorOrdinals = func() map[Operator]int {
	ordinals := map[Operator]int{}
	for i, operator := range builtInOperators {
		ordinals[operator] = i
	}
	return ordinals
}()

// OperatorFrom resolves a name to an Operator, case-insensitively. Names
// matching a built-in resolve to that built-in constant; anything else
// becomes an extension operator carrying the lowercased name.
func OperatorFrom(name string) Operator {
	lower := strings.ToLower(name)
	for _, operator := range builtInOperators {
		if strings.ToLower(string(operator)) == lower {
			return operator
		}
	}
	return Operator(lower)
}

// AllOperators returns the built-in operators in ordinal order.
func AllOperators() []Operator {
	operators := make([]Operator, len(builtInOperators))
	copy(operators, builtInOperators)
	return operators
}

func (o Operator) Name() string {
	return string(o)
}

// IsBuiltIn reports whether the operator is one of the declared constants.
func (o Operator) IsBuiltIn() bool {
	_, ok := operatorOrdinals[o]
	return ok
}

// Ordinal returns a stable sort position. Built-ins keep their declaration
// order; extension operators all sort after them and tie-break by name.
func (o Operator) Ordinal() int {
	if ordinal, ok := operatorOrdinals[o]; ok {
		return ordinal
	}
	return len(builtInOperators)
}

// Compare orders operators by ordinal, then by name for extensions.
func (o Operator) Compare(other Operator) int {
	if diff := o.Ordinal() - other.Ordinal(); diff != 0 {
		return diff
	}
	return strings.Compare(string(o), string(other))
}

// MatchStopIDPattern reports whether stopID matches the operator's stop-id
// shape. Extension operators carry no pattern and never match.
func (o Operator) MatchStopIDPattern(stopID string) bool {
	pattern, ok := operatorStopIDPatterns[o]
	return ok && pattern.MatchString(stopID)
}
