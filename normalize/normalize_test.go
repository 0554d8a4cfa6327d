package normalize

import "testing"

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips whitespace", "  https://Sport.Example/News/1  ", "https://sport.example/News/1"},
		{"scheme relative gets https", "//sport.example/news/1", "https://sport.example/news/1"},
		{"strips www", "https://www.sport.example/news/1", "https://sport.example/news/1"},
		{"collapses host alias", "https://m.sport.example/news/1", "https://sport.example/news/1"},
		{"drops utm params", "https://sport.example/news/1?utm_source=x&id=5", "https://sport.example/news/1?id=5"},
		{"drops fragment", "https://sport.example/news/1#top", "https://sport.example/news/1"},
		{"trims trailing slash", "https://sport.example/news/1/", "https://sport.example/news/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.in)
			if err != nil {
				t.Fatalf("URL(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("URL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestURLIdempotent(t *testing.T) {
	// S1-style round trip: normalizing an already-normalized URL is a no-op.
	in := "https://sport.example/news/1?id=5"
	once, err := URL(in)
	if err != nil {
		t.Fatalf("URL error: %v", err)
	}
	twice, err := URL(once)
	if err != nil {
		t.Fatalf("URL error: %v", err)
	}
	if once != twice {
		t.Errorf("URL not idempotent: %q != %q", once, twice)
	}
}

func TestToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" A-B_c ", "a b c"},
		{"ЦСКА-Москва", "цска москва"},
		{"  multiple   spaces  ", "multiple spaces"},
		{"...leading-and-trailing!!!", "leading and trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Token(tt.in); got != tt.want {
			t.Errorf("Token(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToISORussianLabel(t *testing.T) {
	got, ok := ToISO("5 марта 2026", "14:30")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != "2026-03-05T14:30:00" {
		t.Errorf("ToISO = %q, want %q", got, "2026-03-05T14:30:00")
	}
}

func TestToISOMissingTimeDefaultsMidnight(t *testing.T) {
	got, ok := ToISO("1 января 2026", "")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != "2026-01-01T00:00:00" {
		t.Errorf("ToISO = %q, want %q", got, "2026-01-01T00:00:00")
	}
}

func TestToISOFailureReturnsFalse(t *testing.T) {
	if _, ok := ToISO("not a date", "25:99"); ok {
		t.Error("expected ok=false for unparsable label")
	}
}

func TestToISOFallbackParsesISOTimestamp(t *testing.T) {
	got, ok := ToISO("2026-03-05T14:30:00Z", "")
	if !ok {
		t.Fatal("expected ok=true for ISO fallback")
	}
	if got == "" {
		t.Error("expected non-empty result")
	}
}
