package checksum_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/laav10/astro-ingester/internal/checksum"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string
		missing bool

		want    string
		wantErr bool
	}{
		"Empty file":          {content: "", want: "d41d8cd98f00b204e9800998ecf8427e"},
		"Short content":       {content: "abc", want: "900150983cd24fb0d6963f7d28e17f72"},
		"Spans several reads": {content: strings.Repeat("a", 10000), want: "0d0c9c4db6953fee9e03f528cafd7d3e"},

		"Error on missing file": {missing: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "frame.fits")
			if !tc.missing {
				require.NoError(t, os.WriteFile(path, []byte(tc.content), 0600), "Setup: could not write file")
			}

			got, err := checksum.File(path)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFileDependsOnlyOnContent(t *testing.T) {
	t.Parallel()

	content := []byte(strings.Repeat("FITS data ", 1000))
	dir := t.TempDir()

	a := filepath.Join(dir, "a.fits")
	b := filepath.Join(t.TempDir(), "renamed.fit")
	require.NoError(t, os.WriteFile(a, content, 0600), "Setup: could not write file")
	require.NoError(t, os.WriteFile(b, content, 0600), "Setup: could not write file")

	sumA, err := checksum.File(a)
	require.NoError(t, err)
	sumB, err := checksum.File(b)
	require.NoError(t, err)
	require.Equal(t, sumA, sumB, "Identical content should give identical digests")

	content[len(content)/2] ^= 1
	c := filepath.Join(dir, "c.fits")
	require.NoError(t, os.WriteFile(c, content, 0600), "Setup: could not write file")
	sumC, err := checksum.File(c)
	require.NoError(t, err)
	require.NotEqual(t, sumA, sumC, "A single byte difference should change the digest")
}
