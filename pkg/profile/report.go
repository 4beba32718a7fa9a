package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Report renders the profile as a human-readable summary: per-variable
// dominant types, block and call counts, branch ratios, and derived
// suggestions. Output order is deterministic.
func (p *Profile) Report() string {
	var sb strings.Builder

	sb.WriteString("=== Profile Report ===\n")

	sb.WriteString("\nVariable types:\n")
	varKeys := make([]VarKey, 0, len(p.Types))
	for key := range p.Types {
		varKeys = append(varKeys, key)
	}
	sort.Slice(varKeys, func(i, j int) bool {
		if varKeys[i].Function != varKeys[j].Function {
			return varKeys[i].Function < varKeys[j].Function
		}
		return varKeys[i].Variable < varKeys[j].Variable
	})
	for _, key := range varKeys {
		kind, count, _ := p.DominantType(key.Function, key.Variable)
		total := p.Types[key].Total()
		line := fmt.Sprintf("  %s.%s: %s (%d/%d observations)",
			key.Function, key.Variable, kind, count, total)
		if _, mono := p.Monomorphic(key.Function, key.Variable); mono {
			line += " [stable]"
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\nBlock executions:\n")
	blockKeys := make([]BlockKey, 0, len(p.Blocks))
	for key := range p.Blocks {
		blockKeys = append(blockKeys, key)
	}
	sort.Slice(blockKeys, func(i, j int) bool {
		if blockKeys[i].Function != blockKeys[j].Function {
			return blockKeys[i].Function < blockKeys[j].Function
		}
		return blockKeys[i].Block < blockKeys[j].Block
	})
	for _, key := range blockKeys {
		fmt.Fprintf(&sb, "  %s:%s: %d\n", key.Function, key.Block, p.Blocks[key])
	}

	sb.WriteString("\nBranches:\n")
	sites := make([]string, 0, len(p.Branches))
	for site := range p.Branches {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	for _, site := range sites {
		bp := p.Branches[site]
		fmt.Fprintf(&sb, "  %s: taken %d, not taken %d (ratio %.2f)\n",
			site, bp.Taken, bp.NotTaken, bp.TakenRatio())
	}

	sb.WriteString("\nCalls:\n")
	fns := make([]string, 0, len(p.Calls))
	for fn := range p.Calls {
		fns = append(fns, fn)
	}
	sort.Strings(fns)
	for _, fn := range fns {
		line := fmt.Sprintf("  %s: %d", fn, p.Calls[fn])
		if p.Hot(fn) {
			line += " [hot]"
		}
		sb.WriteString(line + "\n")
	}

	if suggestions := p.Suggestions(); len(suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range suggestions {
			sb.WriteString("  " + s + "\n")
		}
	}

	return sb.String()
}
