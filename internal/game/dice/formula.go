package dice

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	// maxDicePerTerm bounds the count of a single NdS term so evaluation stays cheap.
	maxDicePerTerm = 1000
	// maxDieSides and maxFlat keep every total well inside int range.
	maxDieSides = 1000
	maxFlat     = 1_000_000
)

// Term is one signed component of a Formula: either NdS dice or a flat value.
//
// Invariant: Sign is +1 or -1; for dice terms Count >= 1 and Sides >= 1;
// for flat terms Sides == 0 and Flat >= 0.
type Term struct {
	Sign  int
	Count int
	Sides int
	Flat  int
}

// IsDice reports whether the term draws dice.
func (t Term) IsDice() bool { return t.Sides > 0 }

// String renders the term without its sign.
func (t Term) String() string {
	if t.IsDice() {
		return fmt.Sprintf("%dD%d", t.Count, t.Sides)
	}
	return strconv.Itoa(t.Flat)
}

// Formula is a parsed algebraic dice expression such as "2D6+4" or "1D4-1".
// The zero Formula evaluates to 0.
type Formula struct {
	Terms []Term
}

// IsZero reports whether the formula has no terms.
func (f Formula) IsZero() bool { return len(f.Terms) == 0 }

// String returns the canonical upper-case form, e.g. "1D8+1D6+3". The zero
// Formula renders as "0".
func (f Formula) String() string {
	if f.IsZero() {
		return "0"
	}
	var b strings.Builder
	for i, t := range f.Terms {
		switch {
		case t.Sign < 0:
			b.WriteByte('-')
		case i > 0:
			b.WriteByte('+')
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// Max returns the largest value the formula can produce: every die at its
// highest face. The result is independent of any Source.
//
// Postcondition: Returns Σ sign×count×sides over dice terms plus Σ sign×flat.
func (f Formula) Max() int {
	total := 0
	for _, t := range f.Terms {
		if t.IsDice() {
			total += t.Sign * t.Count * t.Sides
			continue
		}
		total += t.Sign * t.Flat
	}
	return total
}

// Min returns the smallest value the formula can produce.
func (f Formula) Min() int {
	total := 0
	for _, t := range f.Terms {
		switch {
		case !t.IsDice():
			total += t.Sign * t.Flat
		case t.Sign > 0:
			total += t.Count
		default:
			total -= t.Count * t.Sides
		}
	}
	return total
}

// Roll evaluates the formula, drawing every die independently from src.
//
// Precondition: src must be non-nil.
// Postcondition: Min() <= result.Total() <= Max().
func (f Formula) Roll(src Source) RollResult {
	res := RollResult{Expression: f.String()}
	for _, t := range f.Terms {
		if !t.IsDice() {
			res.Modifier += t.Sign * t.Flat
			continue
		}
		for i := 0; i < t.Count; i++ {
			res.Dice = append(res.Dice, t.Sign*D(src, t.Sides))
		}
	}
	return res
}

// Maximized returns the audit record of the formula taken at its maximum.
//
// Postcondition: result.Total() == Max().
func (f Formula) Maximized() RollResult {
	res := RollResult{Expression: f.String(), Maximized: true}
	for _, t := range f.Terms {
		if !t.IsDice() {
			res.Modifier += t.Sign * t.Flat
			continue
		}
		for i := 0; i < t.Count; i++ {
			res.Dice = append(res.Dice, t.Sign*t.Sides)
		}
	}
	return res
}

// Parse parses a dice formula using the lenient-parsing policy: malformed or
// empty input yields the zero Formula, which evaluates to 0. Use ParseStrict
// when content should be validated instead.
//
// Supported forms: "0", "3", "D6", "1D4-1", "2d6 + 4", "1D8+1D6+3", "-2".
func Parse(expr string) Formula {
	f, err := ParseStrict(expr)
	if err != nil {
		return Formula{}
	}
	return f
}

// ParseStrict parses expr like Parse but reports the first malformed term.
//
// Postcondition: Returns the parsed Formula, or a descriptive error and the
// zero Formula.
func ParseStrict(expr string) (Formula, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, expr)
	if s == "" {
		return Formula{}, fmt.Errorf("dice: empty formula")
	}

	var terms []Term
	for _, tok := range splitTerms(s) {
		t, err := parseTerm(tok)
		if err != nil {
			return Formula{}, fmt.Errorf("dice: invalid formula %q: %w", expr, err)
		}
		// "0" and "+0" contribute nothing; dropping them keeps String canonical.
		if !t.IsDice() && t.Flat == 0 {
			continue
		}
		terms = append(terms, t)
	}
	return Formula{Terms: terms}, nil
}

// splitTerms splits s on every '+' or '-' that is not the first character,
// keeping the sign attached to the term that follows it.
func splitTerms(s string) []string {
	var out []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			out = append(out, s[start:i])
			start = i
		}
	}
	return append(out, s[start:])
}

func parseTerm(tok string) (Term, error) {
	t := Term{Sign: 1}
	switch {
	case strings.HasPrefix(tok, "+"):
		tok = tok[1:]
	case strings.HasPrefix(tok, "-"):
		t.Sign = -1
		tok = tok[1:]
	}
	if tok == "" {
		return Term{}, fmt.Errorf("dangling sign")
	}

	dIdx := strings.IndexByte(tok, 'D')
	if dIdx < 0 {
		flat, err := parseNonNegative(tok)
		if err != nil {
			return Term{}, fmt.Errorf("flat term %q: %w", tok, err)
		}
		if flat > maxFlat {
			return Term{}, fmt.Errorf("flat term %d must be at most %d", flat, maxFlat)
		}
		t.Flat = flat
		return t, nil
	}

	t.Count = 1
	if countStr := tok[:dIdx]; countStr != "" {
		count, err := parseNonNegative(countStr)
		if err != nil {
			return Term{}, fmt.Errorf("die count %q: %w", countStr, err)
		}
		if count < 1 || count > maxDicePerTerm {
			return Term{}, fmt.Errorf("die count %d must be in [1, %d]", count, maxDicePerTerm)
		}
		t.Count = count
	}
	sides, err := parseNonNegative(tok[dIdx+1:])
	if err != nil {
		return Term{}, fmt.Errorf("die sides %q: %w", tok[dIdx+1:], err)
	}
	if sides < 1 || sides > maxDieSides {
		return Term{}, fmt.Errorf("die sides %d must be in [1, %d]", sides, maxDieSides)
	}
	t.Sides = sides
	return t, nil
}

// parseNonNegative accepts only ASCII digits, so embedded signs or letters are
// rejected rather than silently absorbed by strconv.
func parseNonNegative(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing number")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("unexpected character %q", r)
		}
	}
	return strconv.Atoi(s)
}

// Roll parses formula leniently and returns its rolled total.
//
// Precondition: src must be non-nil.
// Postcondition: Returns 0 for malformed or empty formulas.
func Roll(formula string, src Source) int {
	return Parse(formula).Roll(src).Total()
}

// Maximize parses formula leniently and returns its maximum possible value.
// Maximize is pure: repeated calls with the same formula return the same value.
func Maximize(formula string) int {
	return Parse(formula).Max()
}
