package main

import "testing"

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"7074000", int64(7074000)},
		{"-250", int64(-250)},
		{"0.5", 0.5},
		{"true", true},
		{"false", false},
		{"CW", "CW"},
		{"ZZGT;", "ZZGT;"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseValue(tt.in); got != tt.want {
				t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
