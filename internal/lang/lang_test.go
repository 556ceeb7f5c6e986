package lang

import "testing"

func TestDefaultIsEnglish(t *testing.T) {
	if d := Default(); d.Code != "en" {
		t.Errorf("Default().Code = %q, want en", d.Code)
	}
}

func TestLookup(t *testing.T) {
	l, ok := Lookup("es")
	if !ok || l.Name != "Spanish" || l.NativeName != "Español" {
		t.Errorf("Lookup(es) = %+v, %v", l, ok)
	}

	l, ok = Lookup("xx")
	if ok {
		t.Error("Lookup(xx) reported ok")
	}
	if l.Code != "en" {
		t.Errorf("unknown code fell back to %q, want en", l.Code)
	}
}

func TestSupportedCodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, l := range Supported {
		if seen[l.Code] {
			t.Errorf("duplicate language code %q", l.Code)
		}
		seen[l.Code] = true
	}
}
