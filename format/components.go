// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package format

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// ColorComponents is a set of color channels. It is used as the write mask
// of a color target: only the named channels of a fragment are written.
//
// The zero value selects no channels.
type ColorComponents uint8

// Color channels.
const (
	ColorR ColorComponents = 1 << iota
	ColorG
	ColorB
	ColorA

	// ColorNone selects no channels.
	ColorNone ColorComponents = 0

	// ColorAll selects all four channels.
	ColorAll = ColorR | ColorG | ColorB | ColorA
)

// Or returns the union of c and o.
func (c ColorComponents) Or(o ColorComponents) ColorComponents { return c | o }

// And returns the intersection of c and o.
func (c ColorComponents) And(o ColorComponents) ColorComponents { return c & o }

// Has reports whether every channel in o is also in c.
func (c ColorComponents) Has(o ColorComponents) bool { return c&o == o }

// IsEmpty reports whether no channel is selected.
func (c ColorComponents) IsEmpty() bool { return c&ColorAll == 0 }

// WriteMask converts c to the backend write mask.
func (c ColorComponents) WriteMask() gputypes.ColorWriteMask {
	var m gputypes.ColorWriteMask
	if c.Has(ColorR) {
		m |= gputypes.ColorWriteMaskRed
	}
	if c.Has(ColorG) {
		m |= gputypes.ColorWriteMaskGreen
	}
	if c.Has(ColorB) {
		m |= gputypes.ColorWriteMaskBlue
	}
	if c.Has(ColorA) {
		m |= gputypes.ColorWriteMaskAlpha
	}
	return m
}

// String returns the channel letters in RGBA order, or "none".
func (c ColorComponents) String() string {
	if c.IsEmpty() {
		return "none"
	}
	var b strings.Builder
	for _, ch := range channels {
		if c.Has(ch.bit) {
			b.WriteByte(ch.letter)
		}
	}
	return b.String()
}

var channels = [...]struct {
	letter byte
	bit    ColorComponents
}{
	{'R', ColorR},
	{'G', ColorG},
	{'B', ColorB},
	{'A', ColorA},
}

// ParseColorComponents parses a channel list such as "rgba", "RGB", "a" or
// "none". Letters may appear in any order; repeats are ignored.
func ParseColorComponents(s string) (ColorComponents, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "none") || s == "" {
		return ColorNone, nil
	}
	var c ColorComponents
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'r', 'R':
			c |= ColorR
		case 'g', 'G':
			c |= ColorG
		case 'b', 'B':
			c |= ColorB
		case 'a', 'A':
			c |= ColorA
		default:
			return ColorNone, fmt.Errorf("format: invalid color channel %q in %q", s[i], s)
		}
	}
	return c, nil
}
