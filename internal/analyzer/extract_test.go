package analyzer

import "testing"

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantObj    string
		wantShaped bool
	}{
		{
			name:       "bare object",
			text:       `{"a":1}`,
			wantObj:    `{"a":1}`,
			wantShaped: true,
		},
		{
			name:       "object inside prose",
			text:       "Sure! Here is the analysis:\n{\"a\": {\"b\": 2}}\nHope this helps.",
			wantObj:    `{"a": {"b": 2}}`,
			wantShaped: true,
		},
		{
			name:       "markdown fence",
			text:       "```json\n{\"a\": [1, 2]}\n```",
			wantObj:    `{"a": [1, 2]}`,
			wantShaped: true,
		},
		{
			name:       "first of two objects",
			text:       `{"first": true} and {"second": true}`,
			wantObj:    `{"first": true}`,
			wantShaped: true,
		},
		{
			name:       "braces inside strings",
			text:       `{"note": "use } and { freely", "n": 1}`,
			wantObj:    `{"note": "use } and { freely", "n": 1}`,
			wantShaped: true,
		},
		{
			name:       "escaped quote inside string",
			text:       `{"q": "say \"}\" loudly"}`,
			wantObj:    `{"q": "say \"}\" loudly"}`,
			wantShaped: true,
		},
		{
			name:       "invalid object then valid one",
			text:       `{not json} then {"ok": 1}`,
			wantObj:    `{"ok": 1}`,
			wantShaped: true,
		},
		{
			name:       "no braces",
			text:       "I cannot determine the plant species.",
			wantShaped: false,
		},
		{
			name:       "closing brace before opening",
			text:       "} oops {",
			wantShaped: false,
		},
		{
			name:       "opening brace only",
			text:       `{"plantIdentified": "Tomato"`,
			wantShaped: false,
		},
		{
			name:       "trailing comma",
			text:       `{"plantIdentified": "Tomato",}`,
			wantShaped: true,
		},
		{
			name:       "truncated after nested object",
			text:       `{"plantIdentified": "Tomato", "metrics": {"soilMoisture": "40%"} and more {"x": 1}`,
			wantShaped: true,
		},
		{
			name:       "valid object nested in invalid one is skipped",
			text:       `{"a": {"b": 1}, oops} {"ok": true}`,
			wantObj:    `{"ok": true}`,
			wantShaped: true,
		},
		{
			name:       "truncated with later brace",
			text:       `{"plantIdentified": "Tomato", "metrics": {"soilMoisture": "40%"}`,
			wantShaped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, shaped := extractObject(tt.text)
			if shaped != tt.wantShaped {
				t.Errorf("Expected shaped=%v, got %v", tt.wantShaped, shaped)
			}
			if obj != tt.wantObj {
				t.Errorf("Expected object %q, got %q", tt.wantObj, obj)
			}
		})
	}
}

func TestMatchBrace_Unbalanced(t *testing.T) {
	if end, ok := matchBrace(`{"a": [1, 2]]`, 0); ok || end != 12 {
		t.Errorf("Expected mismatched close at 12, got end=%d ok=%v", end, ok)
	}
	if end, _ := matchBrace(`{"a": 1`, 0); end != -1 {
		t.Errorf("Expected unterminated object to report -1, got %d", end)
	}
	if end, _ := matchBrace(`{"a": [1, 2}`, 0); end != -1 {
		t.Errorf("Expected unclosed array to leave object open, got %d", end)
	}
}
