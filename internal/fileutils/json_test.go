package fileutils_test

import (
	"strings"
	"testing"

	"github.com/laav10/astro-ingester/internal/fileutils"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Parallel()

	type st struct {
		Str string
		I   int
	}

	tests := map[string]struct {
		input string

		want    st
		wantErr bool
	}{
		"Single object": {input: `{"Str": "test", "I": 1}`, want: st{Str: "test", I: 1}},
		"Empty object":  {input: `{}`},
		"UTF-8 BOM":     {input: "\xef\xbb\xbf" + `{"Str": "bom", "I": 2}`, want: st{Str: "bom", I: 2}},
		"UTF-16LE BOM":  {input: utf16LE(`{"Str": "wide", "I": 3}`), want: st{Str: "wide", I: 3}},

		"Empty input":           {input: "", wantErr: true},
		"Junk data":             {input: `"some junk data"`, wantErr: true},
		"Trailing garbage":      {input: `{"Str": "test"} trailing`, wantErr: true},
		"Wrong type for member": {input: `{"I": "one"}`, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var got st
			err := fileutils.ParseJSON(strings.NewReader(tc.input), &got)
			if tc.wantErr {
				require.Error(t, err, "expected error but got none")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

// utf16LE encodes an ASCII string as UTF-16 little endian with a byte order mark.
func utf16LE(s string) string {
	b := []byte{0xff, 0xfe}
	for _, r := range s {
		b = append(b, byte(r), 0)
	}
	return string(b)
}
