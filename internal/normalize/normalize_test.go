package normalize

import (
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ransomware Hits Acme Corp", "ransomware hits acme corp"},
		{"  The   LockBit gang's  new   variant!  ", "lockbit gang s new variant"},
		{"CVE-2024-3094: a backdoor in xz", "cve 2024 3094 backdoor xz"},
		{"Of the and to", ""},
		{"", ""},
		{"Tab\tand\nnewline", "tab newline"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Text(tt.input); got != tt.expected {
				t.Errorf("Text(%q): expected %q, got %q", tt.input, tt.expected, got)
			}
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	in := "Microsoft patches the zero-day, again."
	once := Text(in)
	if twice := Text(once); twice != once {
		t.Errorf("expected idempotent normalization, got %q then %q", once, twice)
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		input    string
		n        int
		expected string
	}{
		{"abcdef", 3, "abc"},
		{"abc", 10, "abc"},
		{"héllo", 2, "hé"},
		{"abc", 0, ""},
	}

	for _, tt := range tests {
		if got := Prefix(tt.input, tt.n); got != tt.expected {
			t.Errorf("Prefix(%q, %d): expected %q, got %q", tt.input, tt.n, tt.expected, got)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "no markup here", "no markup here"},
		{"paragraphs", "<p>Threat actor</p> <p>observed</p>", "Threat actor observed"},
		{"script removed", "<div>visible<script>alert(1)</script></div>", "visible"},
		{"entities", "AT&amp;T breach", "AT&T breach"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestContent(t *testing.T) {
	got := Content("<h1>The Breach</h1><p>Attackers exfiltrated data.</p>")
	expected := "breach attackers exfiltrated data"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.bleepingcomputer.com/news/security/x", "bleepingcomputer.com"},
		{"http://WWW.Example.COM:8080/a", "example.com"},
		{"https://securityweek.com", "securityweek.com"},
		{"www.krebsonsecurity.com/2024/01/post", "krebsonsecurity.com"},
		{"", ""},
		{"   ", ""},
		{"https://blog.www.example.com", "blog.www.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Domain(tt.input); got != tt.expected {
				t.Errorf("Domain(%q): expected %q, got %q", tt.input, tt.expected, got)
			}
		})
	}
}
