package schema

import "fmt"

// Diff returns a human-readable list of changes between two field mappings.
// Entries cover added and removed fields, type changes, and a reorder marker
// when both sides hold the same fields in a different order.
func Diff(prev, next Fields) []string {
	var out []string

	for _, f := range prev {
		t, ok := next.Lookup(f.Name)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("-%s: %s", f.Name, f.Type))
		case t != f.Type:
			out = append(out, fmt.Sprintf("%s: %s → %s", f.Name, f.Type, t))
		}
	}

	for _, f := range next {
		if _, ok := prev.Lookup(f.Name); !ok {
			out = append(out, fmt.Sprintf("+%s: %s", f.Name, f.Type))
		}
	}

	if len(out) == 0 && !sameOrder(prev, next) {
		out = append(out, fmt.Sprintf("order: %v → %v", prev.Names(), next.Names()))
	}
	return out
}

// DiffCanonical is Diff over two canonical strings. Strings that fail to parse
// are treated as empty mappings.
func DiffCanonical(prev, next string) []string {
	a, _ := ParseCanonical(prev)
	b, _ := ParseCanonical(next)
	return Diff(a, b)
}

func sameOrder(a, b Fields) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}
