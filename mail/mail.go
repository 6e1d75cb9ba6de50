// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"fmt"
	"html"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/jhillyerd/enmime"
)

// DecodeHeader decodes RFC2047 encoded-words, including charsets the
// standard library does not know about.
func DecodeHeader(header string) (string, error) {
	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}

	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return "", fmt.Errorf("could not decode header: %w", err)
	}

	return decoded, nil
}

// ExtractText returns a plain-text rendition of a raw mail. The
// text/plain part is preferred; when only an HTML part exists, its
// markup is stripped so content filters can match against prose.
func ExtractText(rawMail []byte) (string, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(rawMail))
	if err != nil {
		return "", fmt.Errorf("could not parse mail: %w", err)
	}

	text := strings.TrimSpace(envelope.Text)
	if len(text) > 0 {
		return text, nil
	}

	return StripTags(envelope.HTML), nil
}

var (
	tagPattern        = regexp.MustCompile(`(?s)<(script|style)\b.*?</(script|style)>|<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t]+`)
)

// StripTags replaces html markup with whitespace and collapses runs of
// it, leaving just the readable text.
func StripTags(rawHtml string) string {
	text := tagPattern.ReplaceAllString(rawHtml, " ")
	text = html.UnescapeString(text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}
