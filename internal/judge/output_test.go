package judge

import "testing"

func TestHashOutputTrimsTrailingWhitespacePerLine(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
	}{
		{
			name: "trailing spaces on lines don't change the hash",
			a:    []byte("hello\nworld\n"),
			b:    []byte("hello   \nworld  \n"),
		},
		{
			name: "leading/trailing blank lines don't change the hash",
			a:    []byte("hello\nworld"),
			b:    []byte("\n\nhello\nworld\n\n"),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if hashOutput(tc.a) != hashOutput(tc.b) {
				t.Errorf("expected equal hashes for %q and %q", tc.a, tc.b)
			}
		})
	}
}

func TestJudgeOutputMismatch(t *testing.T) {
	spec := Spec{OutputHash: hashOutput([]byte("expected"))}
	if err := judgeOutput(spec, []byte("expected")); err != nil {
		t.Errorf("expected match, got error: %v", err)
	}
	if err := judgeOutput(spec, []byte("different")); err == nil {
		t.Errorf("expected mismatch error")
	}
}
