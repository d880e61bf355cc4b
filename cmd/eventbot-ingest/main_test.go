package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.reply), &out, "Rebuild?")
		if err != nil {
			t.Fatalf("confirm(%q): %v", tt.reply, err)
		}
		if got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.reply, got, tt.want)
		}
		if !strings.Contains(out.String(), "Rebuild? [y/N]") {
			t.Errorf("prompt not written: %q", out.String())
		}
	}
}
