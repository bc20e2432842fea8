package fitsheader

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// valueWidth is the width fixed format values are right justified in.
	valueWidth = 20
	// maxStringSize is the room left for a quoted string once keyword and indicator are written.
	maxStringSize = cardSize - keywordSize - 2 - 2
	// minStringSize is the shortest string content, shorter strings are padded with blanks.
	minStringSize = 8
)

// valueCard encodes a keyword and value as a fixed format card.
// truncated reports whether a string value had to be shortened to fit.
func valueCard(keyword string, v any) (card string, truncated bool, err error) {
	if len(keyword) > keywordSize {
		return "", false, fmt.Errorf("keyword %q is longer than %d characters", keyword, keywordSize)
	}

	var field string
	switch v := v.(type) {
	case bool:
		field = "F"
		if v {
			field = "T"
		}
		field = fmt.Sprintf("%*s", valueWidth, field)
	case int:
		field = fmt.Sprintf("%*d", valueWidth, v)
	case int64:
		field = fmt.Sprintf("%*d", valueWidth, v)
	case float64:
		f, err := formatFloat(v)
		if err != nil {
			return "", false, fmt.Errorf("keyword %q: %v", keyword, err)
		}
		field = fmt.Sprintf("%*s", valueWidth, f)
	case string:
		field, truncated = formatString(v)
	default:
		return "", false, fmt.Errorf("keyword %q: unsupported value type %T", keyword, v)
	}

	return pad(fmt.Sprintf("%-*s= %s", keywordSize, keyword, field)), truncated, nil
}

// commentCard encodes a COMMENT card, cutting text that does not fit.
func commentCard(text string) string {
	text = toASCII(text)
	if room := cardSize - keywordSize; len(text) > room {
		text = text[:room]
	}
	return pad(fmt.Sprintf("%-*s%s", keywordSize, "COMMENT", text))
}

// encodeHeader joins cards, appends END and pads the result to whole blocks.
func encodeHeader(cards []string) []byte {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c)
	}
	b.WriteString(pad("END"))
	if rem := b.Len() % blockSize; rem != 0 {
		b.WriteString(strings.Repeat(" ", blockSize-rem))
	}
	return []byte(b.String())
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%v cannot be stored in a header", f)
	}
	s := strconv.FormatFloat(f, 'G', -1, 64)
	if !strings.ContainsAny(s, ".E") {
		s += ".0"
	}
	return s, nil
}

func formatString(s string) (field string, truncated bool) {
	s = toASCII(s)

	var b strings.Builder
	for _, r := range s {
		esc := string(r)
		if r == '\'' {
			esc = "''"
		}
		if b.Len()+len(esc) > maxStringSize {
			truncated = true
			break
		}
		b.WriteString(esc)
	}

	content := b.String()
	if len(content) < minStringSize {
		content += strings.Repeat(" ", minStringSize-len(content))
	}
	return "'" + content + "'", truncated
}

// toASCII folds accented letters to their base letter and replaces anything else
// outside of printable ASCII by '?', as headers only allow printable ASCII.
func toASCII(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, s)
}

func pad(card string) string {
	if len(card) >= cardSize {
		return card[:cardSize]
	}
	return card + strings.Repeat(" ", cardSize-len(card))
}
