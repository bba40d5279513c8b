package app

import "strings"

// markdownToHTML converts the small subset of Markdown the command handlers
// produce into HTML suitable for a Matrix m.text event with
// format=org.matrix.custom.html: inline code, bold, and newlines.
func markdownToHTML(md string) string {
	result := replaceDelimited(md, "`", "<code>", "</code>")
	result = replaceDelimited(result, "**", "<strong>", "</strong>")
	return strings.ReplaceAll(result, "\n", "<br/>")
}

// replaceDelimited replaces occurrences of delim…delim with open+content+close.
// Only complete pairs are replaced; an unmatched opener is left as-is.
func replaceDelimited(s, delim, open, close string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, delim)
		if start == -1 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start+len(delim):], delim)
		if end == -1 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		b.WriteString(open)
		b.WriteString(s[start+len(delim) : start+len(delim)+end])
		b.WriteString(close)
		s = s[start+len(delim)+end+len(delim):]
	}
}
