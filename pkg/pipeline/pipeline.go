// Package pipeline sequences the compilation stages: source → IR →
// optimization → bytecode → instrumented execution → profile-guided
// re-optimization. Each entry point is re-entrant; all state (IR,
// module, profile) is owned by the caller and nothing is shared across
// invocations.
package pipeline

import (
	"io"

	"github.com/tliron/commonlog"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
	"github.com/Savani-Raj/minivm-plus/pkg/compiler"
	"github.com/Savani-Raj/minivm-plus/pkg/feedback"
	"github.com/Savani-Raj/minivm-plus/pkg/ir"
	"github.com/Savani-Raj/minivm-plus/pkg/optimizer"
	"github.com/Savani-Raj/minivm-plus/pkg/profile"
)

var log = commonlog.GetLogger("minivm.pipeline")

// Options configures one pipeline invocation.
type Options struct {
	Optimize   optimizer.Options
	Thresholds profile.Thresholds
	Limits     feedback.Limits

	// Out receives program output. Nil means the VM default (stdout).
	Out io.Writer
	// Trace enables VM instruction tracing.
	Trace bool
}

// DefaultOptions returns the standard thresholds and limits.
func DefaultOptions() Options {
	return Options{
		Thresholds: profile.DefaultThresholds(),
		Limits:     feedback.DefaultLimits(),
	}
}

// CompileAndOptimize parses src, generates IR, runs the basic and
// advanced optimizer stages, and lowers the result to bytecode. The
// returned IR program is the optimized form the module was lowered
// from; the feedback stage rewrites it after a profiled run.
func CompileAndOptimize(src string, opts Options) (*bytecode.Module, *ir.Program, error) {
	prog, err := compiler.Compile(src)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("compiled %d functions", len(prog.Funcs))

	optimizer.Optimize(prog, opts.Optimize)

	module, err := bytecode.Lower(prog)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("lowered %d functions, %d constants", len(module.Order), len(module.Constants))
	return module, prog, nil
}

// Run executes a module with a fresh profile attached and returns the
// program's result together with the collected profile. The profile is
// valid even when execution faults; it holds everything observed up to
// the fault.
func Run(module *bytecode.Module, opts Options) (bytecode.Value, *profile.Profile, error) {
	th := opts.Thresholds
	if th == (profile.Thresholds{}) {
		th = profile.DefaultThresholds()
	}
	prof := profile.New(th)

	vm := bytecode.NewVM()
	if opts.Out != nil {
		vm.Out = opts.Out
	}
	vm.Trace = opts.Trace

	result, err := vm.ExecuteWithListener(module, prof)
	if err != nil {
		return bytecode.Nil, prof, err
	}
	return result, prof, nil
}

// Reoptimize applies profile feedback (type specialization, inlining)
// to the IR and re-runs the optimizer stages. The input program is not
// mutated; the caller re-lowers the result.
func Reoptimize(prog *ir.Program, prof *profile.Profile, opts Options) *ir.Program {
	if hot := prof.HotFunctions(); len(hot) > 0 {
		log.Infof("reoptimizing with %d hot functions: %v", len(hot), hot)
	}
	return feedback.Reoptimize(prog, prof, opts.Limits, opts.Optimize)
}

// Result is the outcome of a tiered run.
type Result struct {
	Value       bytecode.Value
	Profile     *profile.Profile // profile of the last execution
	Program     *ir.Program      // IR the last execution was lowered from
	Module      *bytecode.Module // module of the last execution
	Reoptimized bool             // whether a feedback tier ran
}

// RunTiered compiles and executes src, and if the first run produced
// any hot functions, re-optimizes with the collected profile and
// executes again. The driver gets the final result plus the artifacts
// of the last tier.
func RunTiered(src string, opts Options) (*Result, error) {
	module, prog, err := CompileAndOptimize(src, opts)
	if err != nil {
		return nil, err
	}

	value, prof, err := Run(module, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{Value: value, Profile: prof, Program: prog, Module: module}

	if len(prof.HotFunctions()) == 0 {
		return res, nil
	}

	reprog := Reoptimize(prog, prof, opts)
	remodule, err := bytecode.Lower(reprog)
	if err != nil {
		return nil, err
	}
	revalue, reprof, err := Run(remodule, opts)
	if err != nil {
		return nil, err
	}
	log.Infof("feedback tier complete")

	return &Result{
		Value:       revalue,
		Profile:     reprof,
		Program:     reprog,
		Module:      remodule,
		Reoptimized: true,
	}, nil
}
