package script

import "strings"

// ReplaceVars substitutes {key} tokens in display text with values from
// vars. Unknown keys are left in place so authors can spot them. The
// scan is a single pass; there is no escape syntax.
func ReplaceVars(text string, vars map[string]string) string {
	if len(vars) == 0 || !strings.ContainsRune(text, '{') {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '{')
		if open < 0 {
			b.WriteString(text[i:])
			break
		}
		open += i
		closing := strings.IndexByte(text[open+1:], '}')
		if closing < 0 {
			b.WriteString(text[i:])
			break
		}
		closing += open + 1

		key := text[open+1 : closing]
		val, ok := vars[key]
		if !ok {
			b.WriteString(text[i : open+1])
			i = open + 1
			continue
		}
		b.WriteString(text[i:open])
		b.WriteString(val)
		i = closing + 1
	}
	return b.String()
}
