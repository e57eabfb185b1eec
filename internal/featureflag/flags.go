// Package featureflag answers whether a school module is switched on for a
// tenant. Unlike authorization it fails open: a flag that cannot be
// resolved reads as enabled.
package featureflag

import (
	"sort"
	"strings"
)

const suffix = ".enabled"

// Module names a switchable area of the ERP.
type Module string

const (
	ModuleAcademics     Module = "academics"
	ModuleAttendance    Module = "attendance"
	ModuleFees          Module = "fees"
	ModuleExams         Module = "exams"
	ModuleLibrary       Module = "library"
	ModuleTransport     Module = "transport"
	ModuleCommunication Module = "communication"
	ModuleReports       Module = "reports"
	ModuleUsers         Module = "users"
)

// Key returns the canonical flag key of the module.
func (m Module) Key() string {
	return string(m) + suffix
}

// Modules lists every known module.
func Modules() []Module {
	return []Module{
		ModuleAcademics, ModuleAttendance, ModuleFees, ModuleExams, ModuleLibrary,
		ModuleTransport, ModuleCommunication, ModuleReports, ModuleUsers,
	}
}

// Set maps canonical flag keys to their state.
type Set map[string]bool

// Defaults is the reviewable policy table used for keys a loaded set does
// not mention, and wholesale when loading fails. Every module starts on.
var Defaults = defaultTable()

func defaultTable() Set {
	modules := Modules()
	table := make(Set, len(modules))
	for _, m := range modules {
		table[m.Key()] = true
	}
	return table
}

// DefaultSet returns a copy of Defaults.
func DefaultSet() Set {
	return Defaults.Clone()
}

// NormalizeKey turns a bare module name into its canonical key. Keys that
// already contain a separator are returned unchanged.
func NormalizeKey(key string) string {
	if strings.Contains(key, ".") {
		return key
	}
	return key + suffix
}

// IsEnabled looks key up in flags, then in Defaults. A key known to neither
// is enabled.
func IsEnabled(flags Set, key string) bool {
	enabled, _ := lookup(flags, key)
	return enabled
}

// lookup also reports whether the key was known to flags or Defaults
func lookup(flags Set, key string) (enabled bool, known bool) {
	key = NormalizeKey(key)
	if v, ok := flags[key]; ok {
		return v, true
	}
	if v, ok := Defaults[key]; ok {
		return v, true
	}
	return true, false
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Normalized returns a copy of s with every key in canonical form. When a
// bare and a full key disagree, the full key wins.
func (s Set) Normalized() Set {
	out := make(Set, len(s))
	for k, v := range s {
		if !strings.Contains(k, ".") {
			if _, full := s[k+suffix]; full {
				continue
			}
		}
		out[NormalizeKey(k)] = v
	}
	return out
}

// Keys returns the keys of s in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
