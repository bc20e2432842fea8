package testutils

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// FITSCard is an extra header card of a generated FITS unit.
type FITSCard struct {
	Keyword string
	Value   any
}

// FITSImage describes an image unit of a generated FITS file.
type FITSImage struct {
	Bitpix int
	Axes   []int
	Cards  []FITSCard
}

// WriteFITS writes a FITS file made of the primary image followed by image extensions.
// Data bytes follow a repeating pattern seeded by seed, so that files only differing in seed
// have different content.
func WriteFITS(t *testing.T, path string, seed byte, primary FITSImage, extensions ...FITSImage) {
	t.Helper()

	var b strings.Builder
	writeUnit(&b, true, len(extensions) > 0, primary, seed)
	for i, ext := range extensions {
		writeUnit(&b, false, false, ext, seed+byte(i)+1)
	}

	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0600), "Setup: could not write FITS file")
}

// SmallImage is a 16x16 32 bit float image.
func SmallImage(cards ...FITSCard) FITSImage {
	return FITSImage{Bitpix: -32, Axes: []int{16, 16}, Cards: cards}
}

func writeUnit(b *strings.Builder, primary, extend bool, img FITSImage, seed byte) {
	start := b.Len()

	if primary {
		b.WriteString(fitsCard("SIMPLE", true))
	} else {
		b.WriteString(fitsCard("XTENSION", "IMAGE"))
	}
	b.WriteString(fitsCard("BITPIX", img.Bitpix))
	b.WriteString(fitsCard("NAXIS", len(img.Axes)))
	for i, n := range img.Axes {
		b.WriteString(fitsCard(fmt.Sprintf("NAXIS%d", i+1), n))
	}
	if !primary {
		b.WriteString(fitsCard("PCOUNT", 0))
		b.WriteString(fitsCard("GCOUNT", 1))
	}
	if extend {
		b.WriteString(fitsCard("EXTEND", true))
	}
	for _, c := range img.Cards {
		b.WriteString(fitsCard(c.Keyword, c.Value))
	}
	b.WriteString(fmt.Sprintf("%-80s", "END"))
	padBlock(b, start)

	start = b.Len()
	size := 0
	if len(img.Axes) > 0 {
		size = abs(img.Bitpix) / 8
		for _, n := range img.Axes {
			size *= n
		}
	}
	for i := range size {
		b.WriteByte(seed + byte(i%251))
	}
	if size > 0 {
		padBlockWith(b, start, 0)
	}
}

func fitsCard(keyword string, v any) string {
	var field string
	switch v := v.(type) {
	case bool:
		field = "F"
		if v {
			field = "T"
		}
		field = fmt.Sprintf("%20s", field)
	case int:
		field = fmt.Sprintf("%20d", v)
	case float64:
		s := fmt.Sprintf("%G", v)
		if !strings.ContainsAny(s, ".E") {
			s += ".0"
		}
		field = fmt.Sprintf("%20s", s)
	case string:
		field = fmt.Sprintf("'%-8s'", strings.ReplaceAll(v, "'", "''"))
	default:
		panic(fmt.Sprintf("unsupported FITS value type %T", v))
	}
	return fmt.Sprintf("%-80s", fmt.Sprintf("%-8s= %s", keyword, field))
}

func padBlock(b *strings.Builder, start int) {
	padBlockWith(b, start, ' ')
}

func padBlockWith(b *strings.Builder, start int, c byte) {
	for (b.Len()-start)%2880 != 0 {
		b.WriteByte(c)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
