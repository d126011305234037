// Package wikitext reads and rewrites the flat field-assignment templates
// the bot maintains inside wiki pages. It is deliberately not a wiki
// markup parser: templates are located by name, their bodies parsed once
// into field spans, and mutations re-serialize only the touched line so
// everything else in the page survives byte-for-byte.
package wikitext

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cryptograss/railbot/internal/domain"
)

// fieldKeyRe matches a "|name=" field assignment inside a template body.
var fieldKeyRe = regexp.MustCompile(`(?i)\|\s*([a-z_][a-z0-9_]*)\s*=`)

// Template is one located template block inside a larger text.
type Template struct {
	Name string
	Body string

	// spans into the source text
	start     int
	end       int
	bodyStart int
	bodyEnd   int
}

func templateRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)\{\{` + regexp.QuoteMeta(name) + `\s*(.*?)\}\}`)
}

// FindTemplate locates the first template with the given name.
func FindTemplate(text, name string) (Template, bool) {
	loc := templateRe(name).FindStringSubmatchIndex(text)
	if loc == nil {
		return Template{}, false
	}
	return Template{
		Name:      name,
		Body:      text[loc[2]:loc[3]],
		start:     loc[0],
		end:       loc[1],
		bodyStart: loc[2],
		bodyEnd:   loc[3],
	}, true
}

// FindTemplates locates every template with the given name, in order.
func FindTemplates(text, name string) []Template {
	locs := templateRe(name).FindAllStringSubmatchIndex(text, -1)
	templates := make([]Template, 0, len(locs))
	for _, loc := range locs {
		templates = append(templates, Template{
			Name:      name,
			Body:      text[loc[2]:loc[3]],
			start:     loc[0],
			end:       loc[1],
			bodyStart: loc[2],
			bodyEnd:   loc[3],
		})
	}
	return templates
}

// Replace substitutes the whole template block inside text, leaving
// everything outside it untouched.
func (t Template) Replace(text, replacement string) string {
	return text[:t.start] + replacement + text[t.end:]
}

// field is one parsed field span within a template body.
type field struct {
	name       string
	value      string
	start, end int // span of the full "|name=value" run in the body
}

// parseFields splits a template body into ordered field spans. A value
// runs to the next "|name=" key or the end of the body.
func parseFields(body string) []field {
	keys := fieldKeyRe.FindAllStringSubmatchIndex(body, -1)
	fields := make([]field, 0, len(keys))
	for i, key := range keys {
		end := len(body)
		if i+1 < len(keys) {
			end = keys[i+1][0]
		}
		fields = append(fields, field{
			name:  strings.ToLower(body[key[2]:key[3]]),
			value: strings.TrimSpace(body[key[1]:end]),
			start: key[0],
			end:   end,
		})
	}
	return fields
}

// Params parses every "|name=value" pair in text into a map with
// lowercased field names. Values are trimmed and cut at a closing "}}"
// so the map can be built from a whole page as well as a bare body.
func Params(text string) map[string]string {
	params := make(map[string]string)
	for _, f := range parseFields(text) {
		value := f.value
		if i := strings.Index(value, "}}"); i >= 0 {
			value = strings.TrimSpace(value[:i])
		}
		params[f.name] = value
	}
	return params
}

// SetField updates or adds a single field in the first template named
// tmplName. Field names compare case-insensitively. Returns the new text
// and whether anything changed; writing a value that is already present
// verbatim is a no-op, which keeps repeated runs from generating edits.
func SetField(text, tmplName, fieldName, value string) (string, bool, error) {
	tmpl, ok := FindTemplate(text, tmplName)
	if !ok {
		return "", false, fmt.Errorf("%w: {{%s}}", domain.ErrTemplateNotFound, tmplName)
	}

	assignment := fmt.Sprintf("|%s=%s", fieldName, value)

	for _, f := range parseFields(tmpl.Body) {
		if f.name != strings.ToLower(fieldName) {
			continue
		}
		if f.value == value {
			return text, false, nil
		}
		trailing := trailingWhitespace(tmpl.Body[f.start:f.end])
		newBody := tmpl.Body[:f.start] + assignment + trailing + tmpl.Body[f.end:]
		return text[:tmpl.bodyStart] + newBody + text[tmpl.bodyEnd:], true, nil
	}

	// Field absent: append it just before the closing marker.
	newBody := strings.TrimRight(tmpl.Body, " \t\n")
	if newBody != "" {
		newBody += "\n"
	}
	newBody += assignment + "\n"
	return text[:tmpl.bodyStart] + newBody + text[tmpl.bodyEnd:], true, nil
}

func trailingWhitespace(s string) string {
	trimmed := strings.TrimRight(s, " \t\n")
	return s[len(trimmed):]
}

// DiffFields returns the sorted names of fields whose value or presence
// differs between two texts. Used for change summaries only.
func DiffFields(old, new string) []string {
	oldParams := Params(old)
	newParams := Params(new)

	seen := make(map[string]bool)
	var changed []string
	for name, value := range oldParams {
		seen[name] = true
		if newValue, ok := newParams[name]; !ok || newValue != value {
			changed = append(changed, name)
		}
	}
	for name := range newParams {
		if !seen[name] {
			changed = append(changed, name)
		}
	}

	sort.Strings(changed)
	return changed
}
