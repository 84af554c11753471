package nebulite

import "testing"

func TestNormalizeKeyName(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOk bool
	}{
		{"Space Bar", "space_bar", true},
		{"A", "a", true},
		{"weird.key", "", false},
		{"bracket[0]", "", false},
		{"ns:key", "", false},
	}
	for _, c := range cases {
		got, ok := normalizeKeyName(c.in)
		if got != c.want || ok != c.wantOk {
			t.Errorf("normalizeKeyName(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.wantOk)
		}
	}
}
