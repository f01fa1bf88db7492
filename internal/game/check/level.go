// Package check implements percentile skill checks: the success-level
// classifier, difficulty tiers, and the opposed-roll resolver.
package check

// Level is the ordered success tier of a percentile check.
// Levels compare with the usual integer operators: a higher Level is a better result.
type Level int

const (
	Fumble Level = iota
	Failure
	RegularSuccess
	HardSuccess
	ExtremeSuccess
	CriticalSuccess
)

// String returns a human-readable level label.
func (l Level) String() string {
	switch l {
	case Fumble:
		return "fumble"
	case Failure:
		return "failure"
	case RegularSuccess:
		return "regular success"
	case HardSuccess:
		return "hard success"
	case ExtremeSuccess:
		return "extreme success"
	case CriticalSuccess:
		return "critical success"
	default:
		return "unknown"
	}
}

// IsSuccess reports whether l is RegularSuccess or better.
func (l Level) IsSuccess() bool { return l >= RegularSuccess }

// Levels lists every level from lowest to highest.
func Levels() []Level {
	return []Level{Fumble, Failure, RegularSuccess, HardSuccess, ExtremeSuccess, CriticalSuccess}
}

// Classify maps a percentile roll against a target skill value to a Level.
//
// The rules are evaluated in a fixed order and the first match wins:
//
//  1. roll == 1                          → CriticalSuccess
//  2. roll == 100                        → Fumble
//  3. roll >= 96 and target < 50         → Fumble
//  4. roll > target                      → Failure
//  5. target >= 5 and roll <= target/5   → ExtremeSuccess
//  6. target >= 2 and roll <= target/2   → HardSuccess
//  7. otherwise                          → RegularSuccess
//
// Precondition: roll is in [1, 100].
// Postcondition: Returns exactly one Level.
func Classify(roll, target int) Level {
	switch {
	case roll == 1:
		return CriticalSuccess
	case roll == 100:
		return Fumble
	case roll >= 96 && target < 50:
		return Fumble
	case roll > target:
		return Failure
	case target >= 5 && roll <= target/5:
		return ExtremeSuccess
	case target >= 2 && roll <= target/2:
		return HardSuccess
	default:
		return RegularSuccess
	}
}
