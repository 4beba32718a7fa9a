// Package profile accumulates runtime observations from an instrumented
// VM execution: type histograms per variable, block execution counts,
// branch outcomes, and call counts.
//
// A Profile is purely additive: every instrumentation event increments
// exactly one counter or appends one type observation. Profiles are
// created fresh per run. The VM writes it through the bytecode.Listener interface
// during execution; the feedback stage reads it afterwards. Nothing is
// shared across runs unless explicitly persisted through a Store.
package profile

import (
	"fmt"
	"sort"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
)

// Thresholds controls when the profile considers something hot or a
// type observation stable.
type Thresholds struct {
	HotBlock    int // block executions before a block is hot
	HotFunction int // calls before a function is hot
	TypeStable  int // same-type observations before a variable is stable
}

// DefaultThresholds returns the standard tier-transition thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{HotBlock: 1000, HotFunction: 100, TypeStable: 100}
}

// VarKey identifies a variable within its function.
type VarKey struct {
	Function string
	Variable string
}

// BlockKey identifies a basic block within its function.
type BlockKey struct {
	Function string
	Block    string
}

// TypeProfile is the observation histogram of one variable. Order
// preserves first observation, which breaks ties in DominantType.
type TypeProfile struct {
	Counts map[bytecode.Kind]int
	Order  []bytecode.Kind
}

func (tp *TypeProfile) observe(k bytecode.Kind) {
	if _, seen := tp.Counts[k]; !seen {
		tp.Order = append(tp.Order, k)
	}
	tp.Counts[k]++
}

// Total returns the number of observations across all kinds.
func (tp *TypeProfile) Total() int {
	n := 0
	for _, c := range tp.Counts {
		n += c
	}
	return n
}

// BranchProfile counts the outcomes of one branch site.
type BranchProfile struct {
	Taken    int
	NotTaken int
}

// TakenRatio returns taken/(taken+not-taken), or 0.5 for a branch that
// was never executed.
func (bp *BranchProfile) TakenRatio() float64 {
	total := bp.Taken + bp.NotTaken
	if total == 0 {
		return 0.5
	}
	return float64(bp.Taken) / float64(total)
}

// Profile holds all observations of one VM execution. It implements
// bytecode.Listener so it can be attached directly to ExecuteWithListener.
type Profile struct {
	Types      map[VarKey]*TypeProfile
	Blocks     map[BlockKey]int
	Branches   map[string]*BranchProfile
	Calls      map[string]int
	Thresholds Thresholds
}

// New creates an empty profile with the given thresholds.
func New(th Thresholds) *Profile {
	return &Profile{
		Types:      make(map[VarKey]*TypeProfile),
		Blocks:     make(map[BlockKey]int),
		Branches:   make(map[string]*BranchProfile),
		Calls:      make(map[string]int),
		Thresholds: th,
	}
}

// ---------------------------------------------------------------------------
// bytecode.Listener
// ---------------------------------------------------------------------------

// EnterBlock counts one execution of a basic block.
func (p *Profile) EnterBlock(function, block string) {
	p.Blocks[BlockKey{function, block}]++
}

// Branch counts one outcome of a conditional branch.
func (p *Profile) Branch(site string, taken bool) {
	bp := p.Branches[site]
	if bp == nil {
		bp = &BranchProfile{}
		p.Branches[site] = bp
	}
	if taken {
		bp.Taken++
	} else {
		bp.NotTaken++
	}
}

// Call counts one invocation of a function.
func (p *Profile) Call(function string) {
	p.Calls[function]++
}

// Observe records the runtime type of one variable store.
func (p *Profile) Observe(function, variable string, kind bytecode.Kind) {
	key := VarKey{function, variable}
	tp := p.Types[key]
	if tp == nil {
		tp = &TypeProfile{Counts: make(map[bytecode.Kind]int)}
		p.Types[key] = tp
	}
	tp.observe(kind)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// DominantType returns the most frequently observed type of a variable
// and its count. Ties break toward the type observed first. The third
// result is false when the variable was never observed.
func (p *Profile) DominantType(function, variable string) (bytecode.Kind, int, bool) {
	tp := p.Types[VarKey{function, variable}]
	if tp == nil || len(tp.Order) == 0 {
		return bytecode.KindNil, 0, false
	}
	best := tp.Order[0]
	for _, k := range tp.Order[1:] {
		if tp.Counts[k] > tp.Counts[best] {
			best = k
		}
	}
	return best, tp.Counts[best], true
}

// Monomorphic reports whether a variable was observed with exactly one
// type, at least TypeStable times.
func (p *Profile) Monomorphic(function, variable string) (bytecode.Kind, bool) {
	tp := p.Types[VarKey{function, variable}]
	if tp == nil || len(tp.Order) != 1 {
		return bytecode.KindNil, false
	}
	k := tp.Order[0]
	if tp.Counts[k] < p.Thresholds.TypeStable {
		return bytecode.KindNil, false
	}
	return k, true
}

// MonomorphicVars returns every stable single-type variable of a
// function with its observed kind.
func (p *Profile) MonomorphicVars(function string) map[string]bytecode.Kind {
	vars := make(map[string]bytecode.Kind)
	for key := range p.Types {
		if key.Function != function {
			continue
		}
		if k, ok := p.Monomorphic(key.Function, key.Variable); ok {
			vars[key.Variable] = k
		}
	}
	return vars
}

// BlockCount returns how many times a block was entered.
func (p *Profile) BlockCount(function, block string) int {
	return p.Blocks[BlockKey{function, block}]
}

// TakenRatio returns the taken ratio of a branch site, or 0.5 for a
// site never observed.
func (p *Profile) TakenRatio(site string) float64 {
	if bp := p.Branches[site]; bp != nil {
		return bp.TakenRatio()
	}
	return 0.5
}

// CallCount returns how many times a function was called.
func (p *Profile) CallCount(function string) int {
	return p.Calls[function]
}

// Hot reports whether a function's call count reached the hot-function
// threshold.
func (p *Profile) Hot(function string) bool {
	return p.Calls[function] >= p.Thresholds.HotFunction
}

// HotFunctions returns all hot functions, sorted by name.
func (p *Profile) HotFunctions() []string {
	var hot []string
	for fn, count := range p.Calls {
		if count >= p.Thresholds.HotFunction {
			hot = append(hot, fn)
		}
	}
	sort.Strings(hot)
	return hot
}

// HotBlocks returns all blocks whose execution count reached the
// hot-block threshold, sorted for deterministic output.
func (p *Profile) HotBlocks() []BlockKey {
	var hot []BlockKey
	for key, count := range p.Blocks {
		if count >= p.Thresholds.HotBlock {
			hot = append(hot, key)
		}
	}
	sort.Slice(hot, func(i, j int) bool {
		if hot[i].Function != hot[j].Function {
			return hot[i].Function < hot[j].Function
		}
		return hot[i].Block < hot[j].Block
	})
	return hot
}

// Branch sites with a ratio beyond these bounds are predictable enough
// to suggest reordering.
const (
	likelyTaken    = 0.8
	likelyNotTaken = 0.2
)

// Suggestions derives human-readable optimization hints from the
// collected counters. Diagnostic only; the feedback stage makes its own
// decisions from the raw queries.
func (p *Profile) Suggestions() []string {
	var out []string
	for _, key := range p.HotBlocks() {
		out = append(out, fmt.Sprintf("hot path candidate: %s:%s (%d executions)",
			key.Function, key.Block, p.Blocks[key]))
	}
	for _, fn := range p.HotFunctions() {
		out = append(out, fmt.Sprintf("inline candidate: %s (%d calls)", fn, p.Calls[fn]))
	}
	sites := make([]string, 0, len(p.Branches))
	for site := range p.Branches {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	for _, site := range sites {
		switch ratio := p.Branches[site].TakenRatio(); {
		case ratio > likelyTaken:
			out = append(out, fmt.Sprintf("branch %s is likely taken (%.0f%%)", site, ratio*100))
		case ratio < likelyNotTaken:
			out = append(out, fmt.Sprintf("branch %s is likely not taken (%.0f%%)", site, ratio*100))
		}
	}
	return out
}
