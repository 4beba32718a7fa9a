package optimizer

import "github.com/Savani-Raj/minivm-plus/pkg/ir"

// Options controls fixed-point iteration.
type Options struct {
	// MaxPasses bounds each stage's fixed-point loop. Zero means
	// DefaultMaxPasses.
	MaxPasses int
}

// Optimize runs the basic stage and then the advanced stage over every
// function of the program, in place. Running it again on its own output
// makes no further change.
func Optimize(prog *ir.Program, opts Options) {
	for _, fn := range prog.Funcs {
		OptimizeFunction(fn, opts)
	}
}

// OptimizeFunction optimizes a single function in place.
func OptimizeFunction(fn *ir.Function, opts Options) {
	maxPasses := opts.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	for pass := 0; pass < maxPasses; pass++ {
		changed := Basic(fn, maxPasses)
		changed = Advanced(fn) || changed
		if !changed {
			break
		}
	}
}
