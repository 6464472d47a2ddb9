package deck

import (
	"crypto/sha1"
	"encoding/binary"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"strings"
)

// StripMarkup removes tags, comments and script/style bodies from a field and
// decodes entities. Media tags are replaced by their filename padded with
// spaces, so two fields that differ only in an embedded image still differ.
func StripMarkup(field string) string {
	if !strings.ContainsAny(field, "<&\u00a0") {
		return field
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(field))
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a truncated tag; the text gathered so far is the result
			return strings.ReplaceAll(b.String(), "\u00a0", " ")
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skipDepth++
				}
			case atom.Img, atom.Audio, atom.Video, atom.Source, atom.Object:
				if src := mediaAttr(tok); src != "" {
					b.WriteString(" ")
					b.WriteString(src)
					b.WriteString(" ")
				}
			}
		case html.EndTagToken:
			tok := z.Token()
			if (tok.DataAtom == atom.Script || tok.DataAtom == atom.Style) && skipDepth > 0 {
				skipDepth--
			}
		}
	}
}

func mediaAttr(tok html.Token) string {
	for _, a := range tok.Attr {
		if a.Key == "src" || a.Key == "data" {
			return a.Val
		}
	}
	return ""
}

// Checksum returns the first 32 bits of the SHA-1 of the stripped field, the
// value consumers compare for duplicate detection.
func Checksum(sortField string) uint32 {
	sum := sha1.Sum([]byte(StripMarkup(sortField)))
	return binary.BigEndian.Uint32(sum[:4])
}
