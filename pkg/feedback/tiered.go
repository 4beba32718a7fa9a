package feedback

import (
	"github.com/Savani-Raj/minivm-plus/pkg/ir"
	"github.com/Savani-Raj/minivm-plus/pkg/optimizer"
	"github.com/Savani-Raj/minivm-plus/pkg/profile"
)

// Tier is a compilation level. Functions start interpreted and move up
// as their call counts cross the controller's thresholds. Tiers only
// go up; there is no deoptimization path back down.
type Tier int

const (
	TierInterpreted Tier = iota // as-compiled, no optimization
	TierBaseline                // basic optimizations
	TierOptimizing              // basic + advanced + profile-guided
)

// String returns the tier's name for logs and reports.
func (t Tier) String() string {
	switch t {
	case TierInterpreted:
		return "interpreted"
	case TierBaseline:
		return "baseline"
	case TierOptimizing:
		return "optimizing"
	default:
		return "unknown"
	}
}

// Controller decides per-function compilation tiers from call counts.
type Controller struct {
	Profile *profile.Profile

	// BaselineThreshold and OptimizingThreshold are the call counts at
	// which a function graduates to the next tier.
	BaselineThreshold   int
	OptimizingThreshold int

	Limits  Limits
	Options optimizer.Options
}

// NewController creates a controller with the standard thresholds.
func NewController(prof *profile.Profile) *Controller {
	return &Controller{
		Profile:             prof,
		BaselineThreshold:   100,
		OptimizingThreshold: 1000,
		Limits:              DefaultLimits(),
	}
}

// TierFor returns the compilation tier a function has earned.
func (c *Controller) TierFor(function string) Tier {
	count := c.Profile.CallCount(function)
	switch {
	case count >= c.OptimizingThreshold:
		return TierOptimizing
	case count >= c.BaselineThreshold:
		return TierBaseline
	default:
		return TierInterpreted
	}
}

// Compile re-optimizes prog at the tier the named function has earned.
// The input program is never mutated. Tier transitions are one-way:
// the caller re-lowers and re-executes; there is no mechanism to undo
// a specialization if later behavior contradicts the profile.
func (c *Controller) Compile(prog *ir.Program, function string) *ir.Program {
	switch c.TierFor(function) {
	case TierOptimizing:
		return Reoptimize(prog, c.Profile, c.Limits, c.Options)
	case TierBaseline:
		out := prog.Clone()
		for _, fn := range out.Funcs {
			maxPasses := c.Options.MaxPasses
			if maxPasses <= 0 {
				maxPasses = optimizer.DefaultMaxPasses
			}
			optimizer.Basic(fn, maxPasses)
		}
		return out
	default:
		return prog.Clone()
	}
}
