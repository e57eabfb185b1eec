package featureflag

import "testing"

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"fees", "fees.enabled"},
		{"fees.enabled", "fees.enabled"},
		{"fees.beta", "fees.beta"},
		{"", ".enabled"},
	}

	for _, tt := range tests {
		if got := NormalizeKey(tt.input); got != tt.expected {
			t.Errorf("NormalizeKey(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestIsEnabled(t *testing.T) {
	flags := Set{
		"fees.enabled":      false,
		"library.enabled":   true,
		"analytics.enabled": false,
	}

	tests := []struct {
		name     string
		key      string
		expected bool
	}{
		{"explicit false", "fees.enabled", false},
		{"bare key", "fees", false},
		{"explicit true", "library", true},
		{"loaded key outside defaults", "analytics", false},
		{"default table", "transport", true},
		{"unknown key fails open", "chess_club", true},
		{"unknown full key fails open", "chess_club.enabled", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEnabled(flags, tt.key); got != tt.expected {
				t.Errorf("IsEnabled(%q) = %v, expected %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestIsEnabledBareAndFullKeysAgree(t *testing.T) {
	sets := []Set{
		nil,
		{},
		{"fees.enabled": true},
		{"fees.enabled": false},
		{"exams.enabled": false},
	}

	for _, flags := range sets {
		for _, m := range Modules() {
			if IsEnabled(flags, string(m)) != IsEnabled(flags, m.Key()) {
				t.Errorf("bare and full key disagree for %s in %v", m, flags)
			}
		}
	}
}

func TestIsEnabledNilSet(t *testing.T) {
	if !IsEnabled(nil, "fees") {
		t.Error("nil set must resolve to defaults")
	}
}

func TestDefaultsCoverEveryModule(t *testing.T) {
	for _, m := range Modules() {
		v, ok := Defaults[m.Key()]
		if !ok {
			t.Errorf("module %s missing from defaults", m)
		}
		if !v {
			t.Errorf("module %s should default to enabled", m)
		}
	}
}

func TestSetNormalized(t *testing.T) {
	flags := Set{
		"fees":           true,
		"fees.enabled":   false,
		"library":        false,
		"transport.beta": true,
	}

	got := flags.Normalized()
	if got["fees.enabled"] != false {
		t.Error("full key must win over bare key")
	}
	if v, ok := got["library.enabled"]; !ok || v {
		t.Error("bare key must be normalized")
	}
	if _, ok := got["fees"]; ok {
		t.Error("bare keys must not survive normalization")
	}
	if !got["transport.beta"] {
		t.Error("dotted keys must be preserved")
	}
	if keys := got.Keys(); len(keys) != 3 || keys[0] != "fees.enabled" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestDefaultSetIsACopy(t *testing.T) {
	set := DefaultSet()
	set[ModuleFees.Key()] = false

	if !Defaults[ModuleFees.Key()] {
		t.Fatal("mutating DefaultSet must not touch Defaults")
	}
}
