package textnorm_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/teslashibe/go-agrivoice/pkg/textnorm"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold with colon", "**Apply urea**: now", "Apply urea. now"},
		{"header and list", "## Tips\n- Water daily\n- Use *neem* oil 🌱", "Tips. Water daily. Use neem oil"},
		{"url and aside", "Visit https://example.com/crops for more (see page 2)!!", "Visit for more!"},
		{"dash and ellipsis", "Wait... what — really?!", "Wait, what, really?"},
		{"quotes", "“Neem” is ‘good’", `"Neem" is 'good'`},
		{"fenced code", "Run:\n```\nls -la\n```\nDone", "Run. Done"},
		{"inline code", "Use `NPK 19-19-19` now", "Use NPK 19-19-19 now"},
		{"markdown link", "See [the guide](https://x.org/guide) today", "See the guide today"},
		{"numbered list", "1. Plough\n2. Sow seeds", "Plough. Sow seeds"},
		{"danda run", "यूरिया डालें।। धन्यवाद", "यूरिया डालें। धन्यवाद"},
		{"blockquote", "> Spray in the evening", "Spray in the evening"},
		{"snake case survives as words", "use soil_moisture sensor", "use soil moisture sensor"},
		{"only formatting", "🌱🌾 ** **", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textnorm.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeApplyUrea(t *testing.T) {
	got := textnorm.Normalize("**Apply urea**: now")

	if !strings.Contains(got, "Apply urea") || !strings.Contains(got, "now") {
		t.Errorf("missing content: %q", got)
	}
	if strings.Contains(got, "**") {
		t.Errorf("markup left behind: %q", got)
	}
	if strings.Contains(got, ":") {
		t.Errorf("colon glue left behind: %q", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"**Apply urea**: now",
		"# Yellow leaves\n\n*Nitrogen* deficiency is likely.\n\n1. Apply **urea** (46% N)\n2. Water well — then wait...\n\n> Tip: check soil pH 🌱🌧️",
		"Visit https://agri.gov.in or [portal](https://x.y) for prices!!!",
		"टमाटर के पत्ते पीले हो रहे हैं: **नाइट्रोजन** की कमी।। 🍅",
		"```go\nfmt.Println(1)\n```\nDone : ok ?!",
		"(aside) 5. Start here",
		"Use ((nested) parens) carefully",
		"((((((nested aside))))))",
		"Spray " + strings.Repeat("(", 12) + "dilute" + strings.Repeat(")", 12) + " at dusk",
		"“Quoted” — ‘text’ … end",
		"~~old~~ new __strong__ _em_",
		strings.Repeat("Water the field. ", 400),
	}

	for i, in := range inputs {
		once := textnorm.Normalize(in)
		twice := textnorm.Normalize(once)
		if once != twice {
			t.Errorf("input %d not idempotent:\n once: %q\ntwice: %q", i, once, twice)
		}
	}
}

func TestNormalizeDeepAsides(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"six levels", "((((((nested aside))))))", ""},
		{"twelve levels in a sentence", "Spray " + strings.Repeat("(", 12) + "dilute" + strings.Repeat(")", 12) + " at dusk", "Spray at dusk"},
		{"siblings", "Sow (a) now (b (c)) today", "Sow now today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textnorm.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTruncates(t *testing.T) {
	in := strings.Repeat("Water the field. ", 400)
	got := textnorm.Normalize(in)

	if n := utf8.RuneCountInString(got); n > textnorm.MaxLength {
		t.Errorf("length %d exceeds %d", n, textnorm.MaxLength)
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("expected cut at a sentence boundary, got suffix %q", got[len(got)-10:])
	}

	t.Run("no boundary", func(t *testing.T) {
		got := textnorm.Normalize(strings.Repeat("a", textnorm.MaxLength+50))
		if n := utf8.RuneCountInString(got); n != textnorm.MaxLength {
			t.Errorf("length %d, want %d", n, textnorm.MaxLength)
		}
	})
}

func TestIsSpeakable(t *testing.T) {
	if textnorm.IsSpeakable(textnorm.Normalize("🌾 ** **")) {
		t.Error("expected formatting-only text to be unspeakable")
	}
	if !textnorm.IsSpeakable(textnorm.Normalize("Water daily")) {
		t.Error("expected plain text to be speakable")
	}
}
