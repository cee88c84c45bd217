package browser

import "strings"

// Compress cuts raw extracted text to at most maxChars, preferring to cut
// at a paragraph or heading boundary (a blank line) rather than mid-sentence,
// and derives a coarse list of semantic fragments from the paragraph split.
// When it cuts, it appends " […]" after the kept text, so a truncated result
// is a few bytes longer than maxChars.
func Compress(text string, maxChars int) (string, []Fragment) {
	text = strings.TrimSpace(text)
	if maxChars <= 0 {
		maxChars = 6000
	}
	paragraphs := strings.Split(text, "\n\n")
	fragments := make([]Fragment, 0, len(paragraphs))
	for _, para := range paragraphs {
		p := strings.TrimSpace(para)
		if p == "" {
			continue
		}
		fragments = append(fragments, Fragment{Type: classifyFragment(p), Text: p})
	}

	if len(text) <= maxChars {
		return text, fragments
	}

	var sb strings.Builder
	for _, para := range paragraphs {
		p := strings.TrimSpace(para)
		if p == "" {
			continue
		}
		candidate := p
		if sb.Len() > 0 {
			candidate = "\n\n" + p
		}
		if sb.Len()+len(candidate) > maxChars {
			break
		}
		sb.WriteString(candidate)
	}
	out := sb.String()
	if out == "" {
		// No single paragraph fits; hard-cut as a last resort.
		out = text[:maxChars]
	}
	if len(out) < len(text) {
		out = strings.TrimSpace(out) + " […]"
	}
	return out, fragments
}

func classifyFragment(p string) string {
	switch {
	case len(p) <= 80 && !strings.Contains(p, "."):
		return "headline"
	case strings.HasPrefix(p, "\"") || strings.HasPrefix(p, "“"):
		return "quote"
	case strings.HasPrefix(p, "- ") || strings.HasPrefix(p, "* ") || strings.HasPrefix(p, "• "):
		return "list"
	default:
		return "paragraph"
	}
}
