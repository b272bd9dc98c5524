// Package colors implements the 8-bit RGB value type used for flash
// arithmetic. All operations saturate to [0,255]; channels never wrap.
package colors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB is one color, one byte per channel.
type RGB struct {
	R, G, B uint8
}

var (
	Black = RGB{0, 0, 0}
	White = RGB{255, 255, 255}
)

var (
	// hexRe is strict on purpose: colorful.Hex scans leniently and
	// would accept truncated specs like "#12345".
	hexRe     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	rgbFuncRe = regexp.MustCompile(`^rgb\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\)$`)
)

// Parse reads a color spec in "#RRGGBB" or "rgb(r, g, b)" form. On any
// parse failure it returns White together with the error so the caller
// can warn and keep going.
func Parse(spec string) (RGB, error) {
	s := strings.TrimSpace(spec)

	if strings.HasPrefix(s, "#") {
		if !hexRe.MatchString(s) {
			return White, fmt.Errorf("colors: bad hex spec %q", spec)
		}
		c, err := colorful.Hex(s)
		if err != nil {
			return White, fmt.Errorf("colors: bad hex spec %q: %w", spec, err)
		}
		r, g, b := c.RGB255()
		return RGB{r, g, b}, nil
	}

	if m := rgbFuncRe.FindStringSubmatch(s); m != nil {
		var ch [3]uint8
		for i, digits := range m[1:] {
			v, err := strconv.Atoi(digits)
			if err != nil || v > 255 {
				return White, fmt.Errorf("colors: channel %q out of range in %q", digits, spec)
			}
			ch[i] = uint8(v)
		}
		return RGB{ch[0], ch[1], ch[2]}, nil
	}

	return White, fmt.Errorf("colors: unrecognized spec %q", spec)
}

// Scale multiplies each channel by factor, truncating toward zero and
// saturating to [0,255]. Factors outside [0,1] are legal inputs; the
// result still stays in range.
func (c RGB) Scale(factor float64) RGB {
	return RGB{
		R: clampChannel(float64(c.R) * factor),
		G: clampChannel(float64(c.G) * factor),
		B: clampChannel(float64(c.B) * factor),
	}
}

// Add sums the two colors channel-wise, saturating at 255.
func (c RGB) Add(other RGB) RGB {
	return RGB{
		R: satAdd(c.R, other.R),
		G: satAdd(c.G, other.G),
		B: satAdd(c.B, other.B),
	}
}

func clampChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func satAdd(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}
