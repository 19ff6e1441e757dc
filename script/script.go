// Package script turns loosely formatted two-host dialogue into ordered lines.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoDialogue is returned by callers when a script yields no lines.
var ErrNoDialogue = errors.New("could not parse skit")

var (
	// Speaker 1: "text" with straight or curly quotes around the utterance.
	strictRe = regexp.MustCompile(`Speaker\s*(\d+)\s*:\s*["“”]([^"“”]+)["“”]`)
	markerRe = regexp.MustCompile(`Speaker\s*(\d+)\s*:`)
)

const quoteChars = `"'“”‘’`

// DialogueLine is one utterance in speaking order.
type DialogueLine struct {
	Speaker int    `json:"speaker" yaml:"speaker"`
	Text    string `json:"text" yaml:"text"`
}

// Label returns the display name used in prompts and manifests.
func (l DialogueLine) Label() string { return fmt.Sprintf("Speaker %d", l.Speaker) }

// Parse extracts dialogue lines from text. Quoted utterances are preferred; when
// none are found every "Speaker N:" marker owns the text up to the next marker.
// Text without markers yields an empty slice.
func Parse(text string) []DialogueLine {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if lines := parseStrict(text); len(lines) > 0 {
		return lines
	}
	return parseLoose(text)
}

func parseStrict(text string) []DialogueLine {
	var out []DialogueLine
	for _, m := range strictRe.FindAllStringSubmatch(text, -1) {
		out = appendLine(out, m[1], m[2])
	}
	return out
}

func parseLoose(text string) []DialogueLine {
	idx := markerRe.FindAllStringSubmatchIndex(text, -1)
	var out []DialogueLine
	for i, m := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		body := strings.TrimSpace(text[m[1]:end])
		body = strings.Trim(body, quoteChars)
		out = appendLine(out, text[m[2]:m[3]], body)
	}
	return out
}

func appendLine(out []DialogueLine, num, body string) []DialogueLine {
	body = strings.TrimSpace(body)
	if body == "" {
		return out
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return out
	}
	return append(out, DialogueLine{Speaker: n, Text: body})
}

// Format renders lines in the canonical `Speaker N: "text"` form, one per line.
func Format(lines []DialogueLine) string {
	var sb strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&sb, "%s: \"%s\"\n", l.Label(), l.Text)
	}
	return sb.String()
}
