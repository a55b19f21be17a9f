package security

import "testing"

func TestProfileSanitizer_SanitizeField(t *testing.T) {
	sanitizer := NewProfileSanitizer()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain text passes through", "Taro Yamada", "Taro Yamada"},
		{"empty input", "", ""},
		{"script tag removed", `<script>alert("xss")</script>Taro`, "Taro"},
		{"img onerror removed", `<img src=x onerror=alert(1)>Sales`, "Sales"},
		{"nested tags removed", "<div><b>Engineering</b></div>", "Engineering"},
		{"japanese text preserved", "営業部", "営業部"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.SanitizeField(tt.raw); got != tt.want {
				t.Errorf("SanitizeField(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestProfileSanitizer_SanitizeFieldIsIdempotent(t *testing.T) {
	sanitizer := NewProfileSanitizer()

	raw := `<b>Misaki</b> <script>x</script>Tanaka`
	once := sanitizer.SanitizeField(raw)
	twice := sanitizer.SanitizeField(once)

	if once != twice {
		t.Errorf("sanitize not idempotent: %q != %q", once, twice)
	}
}
