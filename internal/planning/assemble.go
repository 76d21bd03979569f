package planning

import "fmt"

// Assemble turns corrected steps into plan order. Missing ids become
// step_N by position, dependency references are checked against earlier
// steps only, and unresolvable status spreads to every dependent. All
// steps are kept. The input slice is not modified.
func Assemble(steps []CorrectedStep) []CorrectedStep {
	out := make([]CorrectedStep, len(steps))
	supplied := make(map[string]bool)
	for i, s := range steps {
		out[i] = s
		out[i].DependsOn = dedupe(s.DependsOn)
		out[i].Provenance = append([]Fix(nil), s.Provenance...)
		if s.ID != "" {
			supplied[s.ID] = true
		}
	}

	index := make(map[string]int, len(out))
	for i := range out {
		s := &out[i]
		if s.ID == "" {
			s.ID = freshID(i, supplied, index)
		}
		if _, dup := index[s.ID]; dup {
			s.markUnresolvable("duplicate step id: " + s.ID)
			continue
		}
		index[s.ID] = i
	}

	for i := range out {
		s := &out[i]
		for _, ref := range s.DependsOn {
			pos, ok := index[ref]
			if !ok || pos >= i {
				s.markUnresolvable("invalid dependency: " + ref)
				break
			}
		}
	}

	// dependencies only point backwards, so one pass in order is transitive
	for i := range out {
		s := &out[i]
		if !s.Resolved() {
			continue
		}
		for _, ref := range s.DependsOn {
			if dep := &out[index[ref]]; !dep.Resolved() {
				s.markUnresolvable("blocked by dependency: " + ref)
				break
			}
		}
	}
	return out
}

func freshID(i int, supplied map[string]bool, taken map[string]int) string {
	id := fmt.Sprintf("step_%d", i+1)
	for n := 2; ; n++ {
		if _, used := taken[id]; !used && !supplied[id] {
			return id
		}
		id = fmt.Sprintf("step_%d_%d", i+1, n)
	}
}

func dedupe(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
