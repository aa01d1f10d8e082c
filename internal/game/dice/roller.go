package dice

import "go.uber.org/zap"

// Roll evaluates an Expression using the given Source.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: len(result.Dice) == expr.Count and
// result.Total() == sum(result.Dice) + result.Modifier.
func Roll(expr Expression, src Source) RollResult {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	return RollResult{
		Expression: expr.Raw,
		Dice:       rolled,
		Modifier:   expr.Modifier,
	}
}

// Roller wraps a Source and logger so that every draw made by the game
// rules leaves an audit trail at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller that draws from src and logs to logger.
//
// Precondition: src and logger must be non-nil.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying randomness provider.
func (r *Roller) Source() Source {
	return r.src
}

// Float draws a uniform value in [0, 1) and logs it under label.
//
// Postcondition: return value in [0, 1).
func (r *Roller) Float(label string) float64 {
	v := r.src.Float64()
	r.logger.Debug("roll",
		zap.String("label", label),
		zap.Float64("value", v),
	)
	return v
}

// Chance performs a single draw and reports whether it fell below p.
// The drawn value is returned so callers can apply secondary thresholds
// (such as a critical hit) against the same draw.
//
// Postcondition: ok == (draw < p).
func (r *Roller) Chance(label string, p float64) (ok bool, draw float64) {
	draw = r.src.Float64()
	ok = draw < p
	r.logger.Debug("chance",
		zap.String("label", label),
		zap.Float64("draw", draw),
		zap.Float64("threshold", p),
		zap.Bool("success", ok),
	)
	return ok, draw
}

// Intn draws an int in [0, n) and logs it under label.
//
// Precondition: n > 0.
func (r *Roller) Intn(label string, n int) int {
	v := r.src.Intn(n)
	r.logger.Debug("roll",
		zap.String("label", label),
		zap.Int("n", n),
		zap.Int("value", v),
	)
	return v
}

// RollExpr parses expr and rolls it, logging the result.
//
// Precondition: expr must be a valid dice expression string.
// Postcondition: Returns a RollResult or a parse error.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	result := Roll(e, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result, nil
}
