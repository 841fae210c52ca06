package rulecache

import "strings"

// placeholder marks an absent scope component inside a key. An explicit token
// instead of omission keeps (A, absent) and (A, B) from ever colliding.
const placeholder = "-"

const (
	cutoffPrefix      = "cutoff"
	restrictionPrefix = "restriction"
	scopePrefix       = "scope"
)

// CutoffScope identifies a sales cutoff lookup. Operator is the owning
// "banca"; Window and Vendor narrow it and may be empty.
type CutoffScope struct {
	Operator string
	Window   string
	Vendor   string
}

// RestrictionScope identifies a restriction rule lookup. Number is the
// specific wagered number the rule applies to and may be empty.
type RestrictionScope struct {
	Operator string
	Window   string
	Vendor   string
	Number   string
}

// Scope narrows InvalidateScope. Absent parts widen the invalidation; an
// empty Operator matches nothing. A Vendor without a Window targets entries
// stored with the window component absent.
type Scope struct {
	Operator string
	Window   string
	Vendor   string
}

// WarmRequest is a coarse scope for pre-warming. Empty lists stand for the
// absent component, not "all".
type WarmRequest struct {
	Operator string
	Windows  []string
	Vendors  []string
	Numbers  []string
}

func part(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func cutoffKey(operator, window, vendor string) string {
	return cutoffPrefix + ":" + part(operator) + ":" + part(window) + ":" + part(vendor)
}

func restrictionKey(operator, window, vendor, number string) string {
	return restrictionPrefix + ":" + part(operator) + ":" + part(window) + ":" + part(vendor) + ":" + part(number)
}

func (s CutoffScope) key() string { return cutoffKey(s.Operator, s.Window, s.Vendor) }

func (s RestrictionScope) key() string {
	return restrictionKey(s.Operator, s.Window, s.Vendor, s.Number)
}

func scopeKey(operator, window, vendor string) string {
	return scopePrefix + ":" + part(operator) + ":" + part(window) + ":" + part(vendor)
}

func (s Scope) key() string { return scopeKey(s.Operator, s.Window, s.Vendor) }

// scopesOf derives the scope strings a structured key is indexed under:
// operator, operator+window when a window is present, and operator+vendor
// (with the window as stored, placeholder included) when a vendor is. Keys
// that do not follow the cutoff/restriction layout are not scope-indexed.
func scopesOf(key string) []string {
	parts := strings.Split(key, ":")
	if len(parts) < 4 {
		return nil
	}
	if parts[0] != cutoffPrefix && parts[0] != restrictionPrefix {
		return nil
	}
	op, win, vend := parts[1], parts[2], parts[3]
	if op == placeholder {
		return nil
	}
	scopes := []string{scopeKey(op, "", "")}
	window := ""
	if win != placeholder {
		window = win
		scopes = append(scopes, scopeKey(op, window, ""))
	}
	if vend != placeholder {
		scopes = append(scopes, scopeKey(op, window, vend))
	}
	return scopes
}

// scopePatterns returns the glob patterns covering every key a scope implies,
// for providers that can delete by pattern.
func scopePatterns(s Scope) []string {
	if s.Operator == "" {
		return nil
	}
	switch {
	case s.Window == "" && s.Vendor == "":
		return []string{
			cutoffPrefix + ":" + s.Operator + ":*",
			restrictionPrefix + ":" + s.Operator + ":*",
		}
	case s.Window == "":
		// Vendor pinned without a window matches entries stored with the
		// window component absent, not every window.
		return []string{
			cutoffPrefix + ":" + s.Operator + ":" + placeholder + ":" + s.Vendor,
			restrictionPrefix + ":" + s.Operator + ":" + placeholder + ":" + s.Vendor + ":*",
		}
	case s.Vendor == "":
		return []string{
			cutoffPrefix + ":" + s.Operator + ":" + s.Window + ":*",
			restrictionPrefix + ":" + s.Operator + ":" + s.Window + ":*",
		}
	default:
		return []string{
			cutoffPrefix + ":" + s.Operator + ":" + s.Window + ":" + s.Vendor,
			restrictionPrefix + ":" + s.Operator + ":" + s.Window + ":" + s.Vendor + ":*",
		}
	}
}

// expandScope Cartesian-expands a warm request into every cutoff and
// restriction key it implies.
func expandScope(w WarmRequest) []string {
	if w.Operator == "" {
		return nil
	}
	windows := orAbsent(w.Windows)
	vendors := orAbsent(w.Vendors)
	numbers := orAbsent(w.Numbers)

	keys := make([]string, 0, len(windows)*len(vendors)*(1+len(numbers)))
	for _, win := range windows {
		for _, vend := range vendors {
			keys = append(keys, cutoffKey(w.Operator, win, vend))
			for _, num := range numbers {
				keys = append(keys, restrictionKey(w.Operator, win, vend, num))
			}
		}
	}
	return keys
}

func orAbsent(vs []string) []string {
	if len(vs) == 0 {
		return []string{""}
	}
	return vs
}
