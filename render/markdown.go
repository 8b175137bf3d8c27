// Package render converts model replies written in a small Markdown
// dialect into HTML for the chat view.
//
// The renderer is an ordered list of text-to-text stages, not a parser.
// The first stage HTML-escapes the whole input, so nothing a reply contains
// can become markup except what the later stages emit themselves. Code
// regions are swapped out for opaque placeholders right after escaping and
// swapped back in last, so no other stage ever sees their contents.
package render

import (
	"regexp"
	"strconv"
	"strings"
)

// placeholder kinds
const (
	blockMark  = 'B'
	inlineMark = 'I'
)

// document is the state threaded through the pipeline.
type document struct {
	text      string
	protected []string
}

// protect stores html and returns the placeholder that stands in for it.
// Placeholders are NUL-delimited; the escape stage guarantees the text
// contains no other NUL.
func (d *document) protect(html string, kind byte) string {
	n := len(d.protected)
	d.protected = append(d.protected, html)
	return "\x00" + string(kind) + strconv.Itoa(n) + "\x00"
}

type stage struct {
	name  string
	apply func(*document)
}

var pipeline = []stage{
	{"escape", escapeHTML},
	{"fences", protectFences},
	{"inline-code", protectInlineCode},
	{"headers", renderHeaders},
	{"emphasis", renderEmphasis},
	{"lists", renderLists},
	{"links", renderLinks},
	{"blockquotes", renderBlockquotes},
	{"paragraphs", renderParagraphs},
	{"restore", restoreProtected},
}

// Markdown renders src to HTML. Empty input renders to "".
func Markdown(src string) string {
	if src == "" {
		return ""
	}
	d := &document{text: src}
	for _, s := range pipeline {
		s.apply(d)
	}
	return d.text
}

// Stages returns the pipeline stage names in execution order.
func Stages() []string {
	names := make([]string, len(pipeline))
	for i, s := range pipeline {
		names[i] = s.name
	}
	return names
}

var (
	escaper = strings.NewReplacer(
		"\r\n", "\n",
		"\r", "\n",
		"\x00", "�",
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)

	fenceRe      = regexp.MustCompile("(?s)```(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")

	h3Re = regexp.MustCompile(`(?m)^### (.*)$`)
	h2Re = regexp.MustCompile(`(?m)^## (.*)$`)
	h1Re = regexp.MustCompile(`(?m)^# (.*)$`)

	strongEmRe = regexp.MustCompile(`\*\*\*([^*\s][^*\n]*?)\*\*\*`)
	strongRe   = regexp.MustCompile(`\*\*([^*\s][^*\n]*?)\*\*`)
	emRe       = regexp.MustCompile(`\*([^*\s][^*\n]*?)\*`)

	starItemRe    = regexp.MustCompile(`(?m)^\* (.*)$`)
	dashItemRe    = regexp.MustCompile(`(?m)^- (.*)$`)
	numberedRe    = regexp.MustCompile(`(?m)^\d+\. (.*)$`)
	listMerger    = strings.NewReplacer("</ul>\n<ul>", "", "</ol>\n<ol>", "")
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	blockquoteRe  = regexp.MustCompile(`(?m)^&gt; (.*)$`)
	paragraphRe   = regexp.MustCompile(`\n\n+`)
	placeholderRe = regexp.MustCompile("\x00([BI])([0-9]+)\x00")
)

// escapeHTML normalises line endings and entity-escapes & < > " '.
// Post: the text holds no raw markup characters and no NUL.
func escapeHTML(d *document) {
	d.text = escaper.Replace(d.text)
}

// protectFences replaces each shortest ``` ... ``` pair with a block
// placeholder for <pre><code>BODY</code></pre>. BODY is kept verbatim.
// An unpaired fence stays literal.
func protectFences(d *document) {
	d.text = fenceRe.ReplaceAllStringFunc(d.text, func(m string) string {
		body := m[3 : len(m)-3]
		return d.protect("<pre><code>"+body+"</code></pre>", blockMark)
	})
}

// protectInlineCode replaces `x` spans on a single line with inline
// placeholders for <code>x</code>.
// Pre: fenced regions are already placeholders, so no ``` pair remains.
func protectInlineCode(d *document) {
	d.text = inlineCodeRe.ReplaceAllStringFunc(d.text, func(m string) string {
		return d.protect("<code>"+m[1:len(m)-1]+"</code>", inlineMark)
	})
}

// renderHeaders converts "# ", "## " and "### " lines. The longest prefix
// runs first so a ### line is never taken by the # rule.
func renderHeaders(d *document) {
	d.text = h3Re.ReplaceAllString(d.text, "<h3>${1}</h3>")
	d.text = h2Re.ReplaceAllString(d.text, "<h2>${1}</h2>")
	d.text = h1Re.ReplaceAllString(d.text, "<h1>${1}</h1>")
}

// renderEmphasis converts ***x***, **x** and *x*. Spans stay on one line,
// contain no asterisk and do not start with whitespace, so "* item" list
// markers and "2 * 3" survive.
func renderEmphasis(d *document) {
	d.text = strongEmRe.ReplaceAllString(d.text, "<strong><em>${1}</em></strong>")
	d.text = strongRe.ReplaceAllString(d.text, "<strong>${1}</strong>")
	d.text = emRe.ReplaceAllString(d.text, "<em>${1}</em>")
}

// renderLists wraps each "* ", "- " and "N. " line in its own single-item
// list, then merges wrappers of the same type on directly adjacent lines.
// A blank line between items leaves them as separate lists. Item numbers
// are dropped.
func renderLists(d *document) {
	d.text = starItemRe.ReplaceAllString(d.text, "<ul><li>${1}</li></ul>")
	d.text = dashItemRe.ReplaceAllString(d.text, "<ul><li>${1}</li></ul>")
	d.text = numberedRe.ReplaceAllString(d.text, "<ol><li>${1}</li></ol>")
	d.text = listMerger.Replace(d.text)
}

// renderLinks converts [text](url) into an anchor opening a new view.
// The url is not scheme-checked; escaping already neutralised quotes.
func renderLinks(d *document) {
	d.text = linkRe.ReplaceAllString(d.text, `<a href="${2}" target="_blank">${1}</a>`)
}

// renderBlockquotes converts "> " lines. After escaping the marker reads "&gt; ".
func renderBlockquotes(d *document) {
	d.text = blockquoteRe.ReplaceAllString(d.text, "<blockquote>${1}</blockquote>")
}

// renderParagraphs splits on blank-line runs and wraps every segment that
// is not already a block element in <p>, with single newlines as <br>.
func renderParagraphs(d *document) {
	var sb strings.Builder
	for _, seg := range paragraphRe.Split(d.text, -1) {
		seg = strings.Trim(seg, "\n")
		if seg == "" {
			continue
		}
		if isBlock(seg) {
			sb.WriteString(seg)
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(seg, "\n", "<br>"))
		sb.WriteString("</p>")
	}
	d.text = sb.String()
}

var blockPrefixes = []string{"<h", "<ul", "<ol", "<blockquote", "<pre", "\x00" + string(blockMark)}

func isBlock(seg string) bool {
	for _, p := range blockPrefixes {
		if strings.HasPrefix(seg, p) {
			return true
		}
	}
	return false
}

// restoreProtected swaps placeholders back for their HTML. Inline code may
// wrap a block placeholder, so restored HTML is expanded again. An entry
// only ever refers to entries stored before it.
func restoreProtected(d *document) {
	d.text = d.expand(d.text, len(d.protected))
}

func (d *document) expand(s string, limit int) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil || n >= limit {
			return m
		}
		return d.expand(d.protected[n], n)
	})
}
