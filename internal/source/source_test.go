package source

import "testing"

func TestSiteString(t *testing.T) {
	if got := (Site{}).String(); got != "<unknown>" {
		t.Errorf("zero site = %q, want <unknown>", got)
	}
	s := Site{File: "a.val", Line: 3, Column: 7}
	if got := s.String(); got != "a.val:3:7" {
		t.Errorf("site = %q", got)
	}
}

func TestParseLine(t *testing.T) {
	l, err := ParseLine("dir/a.val:12")
	if err != nil {
		t.Fatal(err)
	}
	if l.File != "dir/a.val" || l.Number != 12 {
		t.Errorf("parsed %+v", l)
	}
	for _, bad := range []string{"", "a.val", "a.val:", "a.val:x", ":3", "a.val:0"} {
		if _, err := ParseLine(bad); err == nil {
			t.Errorf("ParseLine(%q) should fail", bad)
		}
	}
}

func TestLineContains(t *testing.T) {
	l := Line{File: "a.val", Number: 3}
	if !l.Contains(Site{File: "a.val", Line: 3, Column: 40}) {
		t.Error("same file and line must match")
	}
	if l.Contains(Site{File: "b.val", Line: 3}) {
		t.Error("different file must not match")
	}
}
