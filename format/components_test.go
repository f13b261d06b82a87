package format

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestColorComponentsOrAnd(t *testing.T) {
	rgb := ColorR.Or(ColorG).Or(ColorB)
	if !rgb.Has(ColorR | ColorG | ColorB) {
		t.Errorf("Or() = %v, want RGB", rgb)
	}
	if rgb.Has(ColorA) {
		t.Errorf("%v should not contain A", rgb)
	}
	if got := rgb.And(ColorG | ColorA); got != ColorG {
		t.Errorf("And() = %v, want G", got)
	}
	if got := rgb.Or(ColorA); got != ColorAll {
		t.Errorf("RGB.Or(A) = %v, want RGBA", got)
	}
}

func TestColorComponentsWriteMask(t *testing.T) {
	tests := []struct {
		c    ColorComponents
		want gputypes.ColorWriteMask
	}{
		{ColorNone, gputypes.ColorWriteMaskNone},
		{ColorR, gputypes.ColorWriteMaskRed},
		{ColorA | ColorB, gputypes.ColorWriteMaskAlpha | gputypes.ColorWriteMaskBlue},
		{ColorAll, gputypes.ColorWriteMaskAll},
	}

	for _, tt := range tests {
		t.Run(tt.c.String(), func(t *testing.T) {
			if got := tt.c.WriteMask(); got != tt.want {
				t.Errorf("WriteMask() = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestParseColorComponents(t *testing.T) {
	tests := []struct {
		in      string
		want    ColorComponents
		wantErr bool
	}{
		{"rgba", ColorAll, false},
		{"ARGB", ColorAll, false},
		{"rg", ColorR | ColorG, false},
		{"aa", ColorA, false},
		{"none", ColorNone, false},
		{"", ColorNone, false},
		{"rgbx", ColorNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColorComponents(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColorComponents(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseColorComponents(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorComponentsString(t *testing.T) {
	if got := (ColorA | ColorR).String(); got != "RA" {
		t.Errorf("String() = %q, want %q", got, "RA")
	}
	if got := ColorNone.String(); got != "none" {
		t.Errorf("String() = %q, want %q", got, "none")
	}
}
