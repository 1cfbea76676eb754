package llm

import "testing"

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain JSON unchanged",
			input: `{"score":7.5}`,
			want:  `{"score":7.5}`,
		},
		{
			name:  "strips json fenced block",
			input: "```json\n{\"score\":7.5}\n```",
			want:  `{"score":7.5}`,
		},
		{
			name:  "strips plain fenced block",
			input: "```\n{\"subject\":\"test\"}\n```",
			want:  `{"subject":"test"}`,
		},
		{
			name:  "drops prose around JSON",
			input: "Here you go:\n{\"body\":\"test\"}\nHope that helps.",
			want:  `{"body":"test"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSONResponse(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
