package cmake

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		out     string
		want    string
		wantErr bool
	}{
		{"cmake version 3.28.1\n\nCMake suite maintained and supported by Kitware (kitware.com/cmake).\n", "v3.28.1", false},
		{"cmake version 3.20.0-rc2\n", "v3.20.0-rc2", false},
		{"cmake version 3.22\n", "v3.22.0", false},
		{"cmake version banana\n", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			got, err := ParseVersion([]byte(tt.out))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersion err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseVersion = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		have, want string
		ok         bool
	}{
		{"3.28.1", "3.20", true},
		{"v3.20.0", "3.20", true},
		{"3.20.0-rc2", "3.20", true},
		{"3.19.8", "3.20", false},
		{"4.0.0", "3.20", true},
		{"", "3.20", false},
		{"3.28.1", "x", false},
	}
	for _, tt := range tests {
		if got := AtLeast(tt.have, tt.want); got != tt.ok {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}
