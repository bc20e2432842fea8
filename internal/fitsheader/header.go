// Package fitsheader reads and replaces the primary header of FITS files.
package fitsheader

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	blockSize = 2880
	cardSize  = 80
	// keywordSize is the width of the keyword field at the start of each card.
	keywordSize = 8
)

// ErrInvalidFile is returned when the file is not a readable FITS file.
var ErrInvalidFile = errors.New("not a valid FITS file")

// Card is a single header record.
type Card struct {
	Keyword string
	// Value is a bool, int, float64 or string for value cards and nil otherwise.
	Value any
	// Comment is the card comment, or the text of a commentary card such as COMMENT or HISTORY.
	Comment string

	raw string
}

// Header is a parsed primary header.
type Header struct {
	Cards []Card
	// Size is the number of bytes the header occupies in the file, padding included.
	Size int64
}

// Get returns the first card with the given keyword.
func (h Header) Get(keyword string) (Card, bool) {
	for _, c := range h.Cards {
		if c.Keyword == keyword {
			return c, true
		}
	}
	return Card{}, false
}

// Keywords returns the keyword of every card, in order.
func (h Header) Keywords() []string {
	kws := make([]string, 0, len(h.Cards))
	for _, c := range h.Cards {
		kws = append(kws, c.Keyword)
	}
	return kws
}

// ReadPrimary reads the primary header from r, up to and including its END card.
// On success r is positioned at the first byte following the header.
// Blank cards are skipped.
func ReadPrimary(r io.Reader) (Header, error) {
	var h Header
	block := make([]byte, blockSize)
	for {
		if _, err := io.ReadFull(r, block); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Header{}, fmt.Errorf("%w: primary header has no END card", ErrInvalidFile)
			}
			return Header{}, fmt.Errorf("could not read header block: %v", err)
		}
		h.Size += blockSize

		for i := 0; i < blockSize; i += cardSize {
			c, err := parseCard(string(block[i : i+cardSize]))
			if err != nil {
				return Header{}, err
			}
			if h.Size == blockSize && i == 0 && c.Keyword != "SIMPLE" {
				return Header{}, fmt.Errorf("%w: first card is %q instead of SIMPLE", ErrInvalidFile, c.Keyword)
			}
			if c.Keyword == "END" {
				return h, nil
			}
			if strings.TrimSpace(c.raw) == "" {
				continue
			}
			h.Cards = append(h.Cards, c)
		}
	}
}

func parseCard(raw string) (Card, error) {
	c := Card{
		Keyword: strings.TrimRight(raw[:keywordSize], " "),
		raw:     raw,
	}
	if raw[keywordSize:keywordSize+2] != "= " {
		c.Comment = strings.TrimSpace(raw[keywordSize:])
		return c, nil
	}

	v, comment, err := parseValue(raw[keywordSize+2:])
	if err != nil {
		return Card{}, fmt.Errorf("%w: card %q: %v", ErrInvalidFile, c.Keyword, err)
	}
	c.Value = v
	c.Comment = comment
	return c, nil
}

func parseValue(s string) (v any, comment string, err error) {
	s = strings.TrimLeft(s, " ")
	if strings.HasPrefix(s, "'") {
		var b strings.Builder
		i := 1
		for ; i < len(s); i++ {
			if s[i] != '\'' {
				b.WriteByte(s[i])
				continue
			}
			if i+1 < len(s) && s[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			break
		}
		if i >= len(s) {
			return nil, "", errors.New("unterminated string")
		}
		return strings.TrimRight(b.String(), " "), commentOf(s[i+1:]), nil
	}

	field, rest, _ := strings.Cut(s, "/")
	field = strings.TrimSpace(field)
	comment = strings.TrimSpace(rest)

	switch field {
	case "":
		return nil, comment, nil
	case "T":
		return true, comment, nil
	case "F":
		return false, comment, nil
	}
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return int(i), comment, nil
	}
	if f, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(field), 64); err == nil {
		return f, comment, nil
	}
	// Complex and other exotic values are kept verbatim.
	return field, comment, nil
}

func commentOf(rest string) string {
	rest = strings.TrimSpace(rest)
	return strings.TrimSpace(strings.TrimPrefix(rest, "/"))
}
