package unicode

import (
	"testing"
)

func TestInspect_CleanASCII(t *testing.T) {
	rep := Inspect("summarize this advisory")
	if !rep.Clean() {
		t.Errorf("expected clean report, got %v", rep.Findings)
	}
	if rep.Stripped != "summarize this advisory" {
		t.Errorf("expected stripped = original, got %q", rep.Stripped)
	}
}

func TestInspect_HiddenCharacters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
		want  string
	}{
		{"zero-width space", "ig\u200Bnore", KindZeroWidth, "ignore"},
		{"bom", "\uFEFFhello", KindZeroWidth, "hello"},
		{"rtl override", "abc\u202Edef", KindBidi, "abcdef"},
		{"tag char", "hi\U000E0041\U000E0042", KindTag, "hi"},
		{"variation selector", "ok\uFE0F", KindVariationSel, "ok"},
		{"bell", "a\x07b", KindControl, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Inspect(tt.input)
			if rep.Clean() {
				t.Fatal("expected findings")
			}
			if rep.Findings[0].Kind != tt.kind {
				t.Errorf("expected kind %q, got %q", tt.kind, rep.Findings[0].Kind)
			}
			if !rep.Findings[0].Hidden {
				t.Error("expected finding to be hidden")
			}
			if rep.Stripped != tt.want {
				t.Errorf("expected stripped %q, got %q", tt.want, rep.Stripped)
			}
		})
	}
}

func TestInspect_AllowsWhitespaceControls(t *testing.T) {
	rep := Inspect("line one\n\tline two\r\n")
	if !rep.Clean() {
		t.Errorf("tab/newline/cr should not be flagged, got %v", rep.Findings)
	}
}

func TestInspect_InvalidUTF8(t *testing.T) {
	rep := Inspect("ok\xffok")
	if len(rep.Findings) != 1 || rep.Findings[0].Kind != KindInvalidUTF8 {
		t.Fatalf("expected one invalid-utf8 finding, got %v", rep.Findings)
	}
	if rep.Stripped != "okok" {
		t.Errorf("expected invalid byte dropped, got %q", rep.Stripped)
	}
}

func TestInspect_HomoglyphFolded(t *testing.T) {
	// Cyrillic 'а' and 'е' inside an otherwise Latin word.
	rep := Inspect("pаssword rеset")
	if len(rep.Findings) != 2 {
		t.Fatalf("expected 2 homoglyph findings, got %d", len(rep.Findings))
	}
	for _, f := range rep.Findings {
		if f.Kind != KindHomoglyph {
			t.Errorf("expected homoglyph, got %q", f.Kind)
		}
		if f.Hidden {
			t.Error("homoglyphs are visible and must not be marked hidden")
		}
	}
	if len(rep.Hidden()) != 0 {
		t.Errorf("expected no hidden findings, got %d", len(rep.Hidden()))
	}
	if rep.Stripped != "password reset" {
		t.Errorf("expected folded text, got %q", rep.Stripped)
	}
}

func TestInspect_NonConfusableScriptsUntouched(t *testing.T) {
	rep := Inspect("日本語 テスト ñandú")
	if !rep.Clean() {
		t.Errorf("expected clean report for non-confusable text, got %v", rep.Findings)
	}
}

func TestReport_Summary(t *testing.T) {
	rep := Inspect("a\u200Bb\u200Cc\u200Dd")
	got := rep.Summary()
	want := "zero-width U+200B at 1 (+2 more)"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if Inspect("plain").Summary() != "" {
		t.Error("expected empty summary for clean input")
	}
}

func TestStrip(t *testing.T) {
	if got := Strip("\u202Eevil\u200B"); got != "evil" {
		t.Errorf("expected %q, got %q", "evil", got)
	}
}
