package content

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name            string
		paragraphs      []string
		stripTimestamps bool
		want            string
	}{
		{
			name:            "strips timestamps and collapses whitespace",
			paragraphs:      []string{"[00:00:01] A", "B  C"},
			stripTimestamps: true,
			want:            "A\nB C",
		},
		{
			name:            "keeps timestamps when disabled",
			paragraphs:      []string{"[00:00:01] A"},
			stripTimestamps: false,
			want:            "[00:00:01] A",
		},
		{
			name:            "timestamp in the middle of a sentence",
			paragraphs:      []string{"Hello [00:01:02] world"},
			stripTimestamps: true,
			want:            "Hello world",
		},
		{
			name:            "single digit fields are not timestamps",
			paragraphs:      []string{"[0:01:02] kept"},
			stripTimestamps: true,
			want:            "[0:01:02] kept",
		},
		{
			name:            "drops paragraphs that become empty",
			paragraphs:      []string{"  ", "[01:02:03]", "\tkeep\nme\t", ""},
			stripTimestamps: true,
			want:            "keep me",
		},
		{
			name:            "preserves order",
			paragraphs:      []string{"third", "first", "second"},
			stripTimestamps: true,
			want:            "third\nfirst\nsecond",
		},
		{
			name:       "nil input",
			paragraphs: nil,
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.paragraphs, tt.stripTimestamps)
			if got != tt.want {
				t.Errorf("Clean() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	once := Clean([]string{"[00:00:01]  A ", "B\n\nC"}, true)
	twice := Clean([]string{once}, true)
	// A second pass sees one paragraph containing a newline, which collapses to a space.
	if twice != "A B C" {
		t.Errorf("second pass = %q, want %q", twice, "A B C")
	}
	if again := Clean([]string{twice}, true); again != twice {
		t.Errorf("third pass = %q, want %q", again, twice)
	}
}
