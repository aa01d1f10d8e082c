package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a parsed damage expression of the form NdS+M.
//
// Invariant: Count >= 1 and Sides >= 2 after a successful Parse, except for
// flat expressions where Count == 0 and only Modifier applies.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

// Flat reports whether the expression has no dice component.
func (e Expression) Flat() bool {
	return e.Count == 0
}

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Parse parses a dice expression.
// Supported forms: "d20", "2d6", "1d50+24", "4d8-2", and flat integers such
// as "100".
//
// Precondition: expr must be non-empty.
// Postcondition: Returns a valid Expression or a descriptive error.
func Parse(expr string) (Expression, error) {
	raw := expr
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}

	if flat, err := strconv.Atoi(s); err == nil {
		if flat < 0 {
			return Expression{}, fmt.Errorf("dice: flat value in %q must be >= 0", raw)
		}
		return Expression{Raw: raw, Modifier: flat}, nil
	}

	m := exprPattern.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", raw)
	}

	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
		if count <= 0 {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: must be >= 1", raw)
		}
	}
	sides, _ := strconv.Atoi(m[2])
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: must be >= 2", raw)
	}
	mod := 0
	if m[3] != "" {
		mod, _ = strconv.Atoi(m[3])
	}

	return Expression{Raw: raw, Count: count, Sides: sides, Modifier: mod}, nil
}

// MustParse parses expr and panics on error. Useful for package-level values.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}
