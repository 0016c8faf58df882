package tts

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	// Discord mentions and custom emoji: <@123>, <#456>, <:name:789>
	mentionPattern = regexp.MustCompile(`<(?:@[!&]?|#)\d+>`)
	emojiPattern   = regexp.MustCompile(`<a?:(\w+):\d+>`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

var markdown = goldmark.New()

// SpeechText turns a chat message into something worth reading aloud.
// Formatting is dropped, links keep their text, code blocks are skipped and
// inline code is read verbatim.
func SpeechText(message string) string {
	message = mentionPattern.ReplaceAllString(message, "")
	message = emojiPattern.ReplaceAllString(message, "$1")

	reader := text.NewReader([]byte(message))
	doc := markdown.Parser().Parse(reader)

	var buf strings.Builder
	walkSpeech(doc, reader.Source(), &buf)

	return strings.TrimSpace(spacePattern.ReplaceAllString(buf.String(), " "))
}

func walkSpeech(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.AutoLink:
		// Reading out a URL is noise
		buf.WriteString("link")
		return

	case *ast.Image:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkSpeech(c, source, buf)
		}
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkSpeech(c, source, buf)
	}

	if node.Type() == ast.TypeBlock && node.Kind() != ast.KindDocument {
		buf.WriteByte(' ')
	}
}
