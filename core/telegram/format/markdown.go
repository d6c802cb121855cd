// Package format escapes user-supplied text for Telegram parse modes.
package format

import "strings"

var mdV1 = strings.NewReplacer(`_`, `\_`, `*`, `\*`, "`", "\\`", `[`, `\[`)

// EscapeMarkdown escapes text for the legacy Markdown parse mode.
func EscapeMarkdown(text string) string {
	return mdV1.Replace(text)
}
