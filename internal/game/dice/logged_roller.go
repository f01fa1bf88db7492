package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged dice rolling.
// All formula rolls and percentile draws are logged at debug level.
//
// Roller satisfies Source, so it can be handed to any code that only needs
// raw draws; those draws are not logged individually.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if src == nil {
		panic("dice: NewLoggedRoller requires a non-nil Source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Intn delegates to the wrapped Source.
func (r *Roller) Intn(n int) int { return r.src.Intn(n) }

// Roll evaluates f and logs the result at debug level.
//
// Postcondition: result logged; result.Total() is in [f.Min(), f.Max()].
func (r *Roller) Roll(f Formula) RollResult {
	result := f.Roll(r.src)
	r.log(result)
	return result
}

// Maximize returns f taken at its maximum and logs it.
//
// Postcondition: result.Total() == f.Max().
func (r *Roller) Maximize(f Formula) RollResult {
	result := f.Maximized()
	r.log(result)
	return result
}

// RollExpr parses expr leniently and rolls it, logging the result.
//
// Postcondition: malformed expressions roll as 0.
func (r *Roller) RollExpr(expr string) RollResult {
	f := Parse(expr)
	if f.IsZero() && expr != "" {
		r.logger.Debug("dice formula evaluated as zero", zap.String("input", expr))
	}
	return r.Roll(f)
}

// Percentile draws a d100 and logs it.
//
// Postcondition: Returns a value in [1, 100].
func (r *Roller) Percentile() int {
	v := Percentile(r.src)
	r.logger.Debug("percentile roll", zap.Int("roll", v))
	return v
}

func (r *Roller) log(result RollResult) {
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Bool("maximized", result.Maximized),
		zap.Int("total", result.Total()),
	)
}
