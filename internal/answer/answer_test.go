package answer

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "marker and end-of-turn token",
			input: "Some reasoning...\nAnswer:\n</s> Buy gold now.",
			want:  "Buy gold now.",
		},
		{
			name:  "no marker keeps whole text",
			input: "  Hold crude oil.  ",
			want:  "Hold crude oil.",
		},
		{
			name:  "last marker wins",
			input: "Question: x\n\nAnswer:\nprompt echo\nAnswer: Sell oil.",
			want:  "Sell oil.",
		},
		{
			name:  "stacked turn tokens",
			input: "Answer: </s><|assistant|>\n </s> Wait for April data.",
			want:  "Wait for April data.",
		},
		{
			name:  "assistant token without marker",
			input: "<|assistant|>Gold looks strong.",
			want:  "Gold looks strong.",
		},
		{
			name:  "turn token in the middle is kept",
			input: "Answer: buy </s> sell",
			want:  "buy </s> sell",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanSummary(t *testing.T) {
	raw := "You are a financial analyst...\nData:\n2025-04-01: Open=1\n\nSummary: Gold rose 5% in April."
	if got := CleanSummary(raw); got != "Gold rose 5% in April." {
		t.Errorf("CleanSummary = %q", got)
	}
}
