package enrichment

import (
	"regexp"
	"strings"
	"time"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```[A-Za-z]*\\s*(.*?)\\s*```")
	htmlBlock     = regexp.MustCompile("(?is)```html\\s*(.*?)\\s*```")
	bulletPrefix  = regexp.MustCompile(`^\s*(?:[-*•]+\s*|\d+[.)]\s+)`)
	noneResponses = map[string]struct{}{
		"none": {}, "n/a": {}, "na": {}, "not available": {}, "none identified": {}, "unknown": {},
	}
)

// shapeParser reads a model response into one declared shape. JSON is tried
// first, then labelled lines for records and delimiter splitting for lists.
type shapeParser struct {
	shape  entities.Shape
	labels []labelMatcher
}

type labelMatcher struct {
	key string
	re  *regexp.Regexp
}

func newShapeParser(shape entities.Shape) *shapeParser {
	p := &shapeParser{shape: shape}
	for _, k := range shape.Keys {
		p.labels = append(p.labels, labelMatcher{key: k.Name, re: labelPattern(k.Name)})
	}
	return p
}

// labelPattern matches "Key Name: value", "**Key name** - value", "- key_name: value" and similar.
func labelPattern(key string) *regexp.Regexp {
	words := strings.Split(key, "_")
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)^[\s>#*•-]*` + strings.Join(words, `[\s_-]+`) +
		`(?:\s+[a-z]+)?\s*\**\s*(?::|\s[-–]\s)\s*\**\s*(.*)$`)
}

// Parse returns a value conforming to the parser's shape or ErrUnparsable.
func (p *shapeParser) Parse(raw string) (entities.FieldValue, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return p.shape.Default(), ErrUnparsable
	}

	if v, ok := p.parseJSON(text); ok {
		return v, nil
	}

	switch p.shape.Kind {
	case entities.KindText:
		return entities.TextValue(text), nil
	case entities.KindList:
		return entities.ListValue(splitList(text)...), nil
	case entities.KindRecord:
		return p.parseLabeled(text)
	}
	return p.shape.Default(), ErrUnparsable
}

func (p *shapeParser) parseJSON(text string) (entities.FieldValue, bool) {
	opening, closing := "{", "}"
	if p.shape.Kind == entities.KindList {
		opening, closing = "[", "]"
	} else if p.shape.Kind != entities.KindRecord {
		return entities.FieldValue{}, false
	}

	// A list answer is only read as JSON when it is one; brackets inside prose are common.
	if p.shape.Kind == entities.KindList && !strings.HasPrefix(text, opening) {
		return entities.FieldValue{}, false
	}

	start := strings.Index(text, opening)
	end := strings.LastIndex(text, closing)
	if start < 0 || end <= start {
		return entities.FieldValue{}, false
	}

	v, err := p.shape.Decode([]byte(text[start : end+1]))
	if err != nil {
		return entities.FieldValue{}, false
	}
	if p.shape.Kind == entities.KindRecord && v.IsEmpty() {
		return entities.FieldValue{}, false
	}
	if p.shape.Kind == entities.KindList {
		v = entities.ListValue(cleanItems(v.List)...)
	}
	return v, true
}

func (p *shapeParser) parseLabeled(text string) (entities.FieldValue, error) {
	collected := make(map[string][]string, len(p.labels))
	current := ""
	matched := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if key, rest, ok := p.matchLabel(trimmed); ok {
			current = key
			matched = true
			if rest != "" {
				collected[key] = append(collected[key], rest)
			}
			continue
		}
		if current != "" {
			collected[current] = append(collected[current], trimmed)
		}
	}

	if !matched {
		return p.shape.Default(), ErrUnparsable
	}

	record := make(map[string]entities.FieldValue, len(p.shape.Keys))
	for _, k := range p.shape.Keys {
		lines := collected[k.Name]
		switch k.Shape.Kind {
		case entities.KindList:
			record[k.Name] = entities.ListValue(splitList(strings.Join(lines, "\n"))...)
		default:
			value := strings.TrimSpace(strings.Join(lines, "\n"))
			if isNone(value) {
				value = ""
			}
			record[k.Name] = entities.TextValue(value)
		}
	}
	return entities.RecordValue(record), nil
}

func (p *shapeParser) matchLabel(line string) (string, string, bool) {
	for _, l := range p.labels {
		if m := l.re.FindStringSubmatch(line); m != nil {
			return l.key, strings.TrimSpace(strings.Trim(m[1], "*")), true
		}
	}
	return "", "", false
}

func stripCodeFences(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// splitList breaks text into items on newlines, commas and semicolons, dropping
// bullets, blanks, duplicates and "none" style answers.
func splitList(text string) []string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = bulletPrefix.ReplaceAllString(line, "")
		parts = append(parts, strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';'
		})...)
	}
	return cleanItems(parts)
}

func cleanItems(parts []string) []string {
	items := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `*."'`))
		if item == "" || isNone(item) {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		items = append(items, item)
	}
	return items
}

func isNone(s string) bool {
	_, ok := noneResponses[strings.ToLower(strings.TrimRight(strings.TrimSpace(s), "."))]
	return ok
}

// CleanHTMLSummary extracts the HTML document from a summary response: a
// fenced html block if present, else everything from the doctype on, else the
// trimmed response.
func CleanHTMLSummary(raw string) string {
	if m := htmlBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if i := strings.Index(raw, "<!DOCTYPE html>"); i >= 0 {
		return strings.TrimSpace(raw[i:])
	}
	return strings.TrimSpace(raw)
}

func parseSummary(raw string, now time.Time) (entities.FieldValue, error) {
	content := CleanHTMLSummary(raw)
	if content == "" {
		return shapeOf(entities.FieldSummary).Default(), ErrUnparsable
	}
	return entities.RecordValue(map[string]entities.FieldValue{
		"content":      entities.TextValue(content),
		"format":       entities.TextValue("html"),
		"generated_on": entities.TextValue(now.UTC().Format("2006-01-02")),
	}), nil
}
