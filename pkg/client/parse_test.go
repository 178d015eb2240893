package client

import (
	"testing"
)

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"trailing comma", `{"a": [1, 2,], "b": 3,}`, `{"a": [1, 2], "b": 3}`},
		{"block comment", `{"a": /* note */ 1}`, `{"a":  1}`},
		{"prose around", `Here you go: {"a": 1} hope it helps`, `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeModelJSON(tt.in); got != tt.want {
				t.Errorf("SanitizeModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAnalysisResult(t *testing.T) {
	raw := `{"primary": {"label": "person", "confidence": 0.9, "box": {"x": 0.1, "y": 0.2, "w": 0.4, "h": 0.6}}, "description": "a designer at a desk", "tags": ["person"]}`

	got := ParseAnalysisResult(raw)
	if got.Primary.Label != "person" {
		t.Errorf("Expected label person, got %s", got.Primary.Label)
	}
	// Center is derived from the box when the model omits it.
	if got.Primary.Cx != 0.30000000000000004 && got.Primary.Cx != 0.3 {
		t.Errorf("Expected cx 0.3, got %f", got.Primary.Cx)
	}
	if got.Primary.Cy != 0.5 {
		t.Errorf("Expected cy 0.5, got %f", got.Primary.Cy)
	}
}

func TestParseAnalysisResult_Fallbacks(t *testing.T) {
	for _, raw := range []string{"I cannot see an image", `{"primary": }`} {
		got := ParseAnalysisResult(raw)
		if got.Primary.Label != "none" {
			t.Errorf("Expected fallback label none for %q, got %s", raw, got.Primary.Label)
		}
		if got.Primary.Cx != 0.5 || got.Primary.Cy != 0.5 {
			t.Errorf("Expected centered fallback for %q", raw)
		}
	}
}
