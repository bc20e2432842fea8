package fitsheader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/laav10/astro-ingester/internal/fileutils"
	"github.com/laav10/astro-ingester/internal/metadata"
	"github.com/ubuntu/decorate"
)

// Rewriter replaces the primary header of FITS files with a canonical field set.
type Rewriter struct {
	now func() time.Time
	log *slog.Logger
}

type options struct {
	now func() time.Time
	log *slog.Logger
}

// Option configures a Rewriter.
type Option func(*options)

// WithClock sets the clock used to timestamp rewritten headers.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger of the Rewriter.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a Rewriter.
func New(args ...Option) Rewriter {
	opts := options{
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range args {
		opt(&opts)
	}
	return Rewriter{now: opts.now, log: opts.log}
}

// Rewrite replaces every card of the primary header of the file at path.
//
// The new header holds the structural cards of the file, EXTEND when the file has extensions,
// every other field of fs and a COMMENT card recording the rewrite time.
// Data and extensions are kept byte for byte.
// The file is replaced atomically and left untouched on error.
func (r Rewriter) Rewrite(path string, fs metadata.FieldSet) (err error) {
	defer decorate.OnError(&err, "could not rewrite header of %q", path)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	n, err := countHDUs(f)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	old, err := ReadPrimary(f)
	if err != nil {
		return err
	}
	r.log.Debug("Read primary header", "file", path, "cards", len(old.Cards), "hdus", n)

	header, err := r.build(old, fs, n > 1)
	if err != nil {
		return err
	}

	return fileutils.AtomicWriteFunc(path, info.Mode().Perm(), func(w io.Writer) error {
		if _, err := w.Write(header); err != nil {
			return err
		}
		_, err := io.Copy(w, f)
		return err
	})
}

func (r Rewriter) build(old Header, fs metadata.FieldSet, extended bool) ([]byte, error) {
	structural, err := structuralCards(old)
	if err != nil {
		return nil, err
	}
	r.checkGeometry(old, fs)

	cards := make([]string, 0, len(structural)+len(metadata.Keywords())+2)
	for _, c := range structural {
		cards = append(cards, c.raw)
	}
	if extended {
		c, _, err := valueCard("EXTEND", true)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}

	for _, field := range fs.Cards() {
		if isStructural(field.Name) {
			continue
		}
		c, truncated, err := valueCard(field.Name, field.Value)
		if err != nil {
			return nil, err
		}
		if truncated {
			r.log.Warn("Header value too long, truncated", "keyword", field.Name)
		}
		cards = append(cards, c)
	}

	cards = append(cards, commentCard("Header updated on "+r.now().UTC().Format(time.RFC3339)))
	return encodeHeader(cards), nil
}

// checkGeometry warns when the canonical geometry disagrees with the file, whose own values are kept.
func (r Rewriter) checkGeometry(old Header, fs metadata.FieldSet) {
	want := map[string]any{
		"SIMPLE": fs.Simple,
		"BITPIX": fs.Bitpix,
		"NAXIS":  fs.Naxis,
		"NAXIS1": fs.Naxis1,
		"NAXIS2": fs.Naxis2,
	}
	for _, kw := range []string{"SIMPLE", "BITPIX", "NAXIS", "NAXIS1", "NAXIS2"} {
		c, ok := old.Get(kw)
		if ok && c.Value == want[kw] {
			continue
		}
		r.log.Warn("Metadata disagrees with the file structure, keeping the file value",
			"keyword", kw, "file", c.Value, "metadata", want[kw])
	}
}

// structuralCards returns the cards describing the layout of the primary data, in file order.
func structuralCards(h Header) ([]Card, error) {
	naxis, ok := h.Get("NAXIS")
	if !ok {
		return nil, fmt.Errorf("%w: missing NAXIS", ErrInvalidFile)
	}
	n, ok := naxis.Value.(int)
	if !ok || n < 0 || n > 999 {
		return nil, fmt.Errorf("%w: invalid NAXIS %v", ErrInvalidFile, naxis.Value)
	}
	if _, ok := h.Get("BITPIX"); !ok {
		return nil, fmt.Errorf("%w: missing BITPIX", ErrInvalidFile)
	}

	axes := make(map[string]bool, n)
	for i := 1; i <= n; i++ {
		axes[fmt.Sprintf("NAXIS%d", i)] = true
	}

	var cards []Card
	for _, c := range h.Cards {
		switch c.Keyword {
		case "SIMPLE", "BITPIX", "NAXIS", "GROUPS", "PCOUNT", "GCOUNT":
			cards = append(cards, c)
		default:
			if axes[c.Keyword] {
				cards = append(cards, c)
				delete(axes, c.Keyword)
			}
		}
	}
	if len(axes) > 0 {
		return nil, fmt.Errorf("%w: NAXIS is %d but some axis lengths are missing", ErrInvalidFile, n)
	}
	return cards, nil
}

// isStructural reports whether keyword is owned by the file layout rather than the metadata.
func isStructural(keyword string) bool {
	switch keyword {
	case "SIMPLE", "BITPIX", "NAXIS", "EXTEND", "GROUPS", "PCOUNT", "GCOUNT":
		return true
	}
	rest, ok := strings.CutPrefix(keyword, "NAXIS")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// countHDUs decodes the whole file and returns its number of header and data units.
func countHDUs(r io.Reader) (int, error) {
	f, err := fitsio.Open(bufio.NewReader(r))
	if err != nil {
		return 0, errors.Join(ErrInvalidFile, err)
	}
	defer f.Close()

	return len(f.HDUs()), nil
}
