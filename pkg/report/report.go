// Package report renders the Markdown troubleshooting reports attached to
// stage and diagnostic results.
package report

import "strings"

// Markdown builds a three part report: what went wrong, what could have
// caused it and how to fix it, followed by an optional details list.
func Markdown(title, whatWentWrong string, likelyCauses, howToFix, details []string) string {
	var b strings.Builder
	b.WriteString("### " + title + "\n\n")
	b.WriteString("**1) What went wrong**\n\n")
	b.WriteString("- " + whatWentWrong + "\n\n")
	b.WriteString("**2) What could have caused that**\n\n")
	writeList(&b, likelyCauses)
	b.WriteString("\n**3) How to fix it**\n\n")
	writeList(&b, howToFix)

	if len(details) > 0 {
		b.WriteString("\n---\n**Details (for debugging)**\n")
		writeList(&b, details)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
}

// Code wraps s in backticks for use inside a details line.
func Code(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "'") + "`"
}
