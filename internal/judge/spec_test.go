package judge

import "testing"

func TestCheckSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{
			name: "valid inline input",
			spec: Spec{Input: "1 2 3", OutputHash: "abc", Cost: 1000, Memory: 16},
		},
		{
			name: "valid input_url",
			spec: Spec{InputURL: "https://example.test/in.txt", OutputHash: "abc", Cost: 1000, Memory: 16},
		},
		{
			name:    "cost over ceiling",
			spec:    Spec{Input: "x", Cost: 2_000_000_000, Memory: 16},
			wantErr: true,
		},
		{
			name:    "memory over ceiling",
			spec:    Spec{Input: "x", Cost: 1000, Memory: 4096},
			wantErr: true,
		},
		{
			name:    "neither input nor input_url",
			spec:    Spec{Cost: 1000, Memory: 16},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckSpec(tc.spec, 1_000_000_000, 2048)
			if tc.wantErr && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
