package translate

import (
	"regexp"
	"strings"
)

var (
	bracketedNote = regexp.MustCompile(`(?is)[(\[（【]\s*(note|注|注意|备注)\s*[:：][^)\]）】]*[)\]）】]`)
	noteLine      = regexp.MustCompile(`(?i)^\s*(note|注|注意|备注)\s*[:：]`)
	labelPrefix   = regexp.MustCompile(`(?i)^\s*(translation|译文|翻译)\s*[:：]\s*`)
)

// SanitizeAIText strips the disclaimers and labels LLMs like to wrap around a
// translation and collapses the rest onto one line.
func SanitizeAIText(s string) string {
	s = bracketedNote.ReplaceAllString(s, " ")

	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if noteLine.MatchString(line) {
			continue
		}
		line = labelPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	out := strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
	return strings.Trim(out, `"“”「」`)
}
