// Package render implements the channel-agnostic template renderer.
//
// Bodies are Liquid templates restricted to {{namespace.key}} variable
// substitution. Rendering is fail-closed: a placeholder that is not declared
// in the template's variable schema, or that the bindings do not supply a
// value for, aborts the render with a MissingVariableError. A sent message
// never contains literal unsubstituted placeholder text.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/luminapress/comms-engine/internal/domain"
)

// Rendered is the output of a successful render.
type Rendered struct {
	Subject string // empty for non-email channels
	Body    string
}

// Renderer renders templates with per-channel escaping. Safe for concurrent
// use; parsed templates are cached by template ID.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template, keyed by template ID + revision
}

// New creates a renderer.
func New() *Renderer {
	return &Renderer{engine: liquid.NewEngine()}
}

// Matches {{ var }} and {{ var | filter }} variable references.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*?)(?:\s*\||\s*\}\})`)

// Render substitutes bindings into the template body (and subject, for
// email). Bindings are nested maps keyed by namespace, e.g.
// {"subscriber": {"firstName": "Ada"}, "content": {"title": "..."}}.
func (r *Renderer) Render(tpl *domain.Template, bindings map[string]interface{}) (*Rendered, error) {
	if err := r.validate(tpl, tpl.Body, bindings); err != nil {
		return nil, err
	}
	if tpl.Subject != "" {
		if err := r.validate(tpl, tpl.Subject, bindings); err != nil {
			return nil, err
		}
	}

	escaped := escapeBindings(bindings, formatterFor(tpl.Channel))

	body, err := r.renderString(tpl.ID+":body", tpl.Body, escaped)
	if err != nil {
		return nil, fmt.Errorf("render template %s: %w", tpl.ID, err)
	}

	out := &Rendered{Body: body}
	if tpl.Subject != "" {
		// Subjects are plain text regardless of channel.
		subject, err := r.renderString(tpl.ID+":subject", tpl.Subject, escapeBindings(bindings, formatPlain))
		if err != nil {
			return nil, fmt.Errorf("render template %s subject: %w", tpl.ID, err)
		}
		out.Subject = subject
	}
	return out, nil
}

// CheckTemplate verifies that a template parses and that every placeholder
// it references is declared in its variable schema. Used at template
// creation so a broken template is rejected before any campaign binds to it.
func CheckTemplate(tpl *domain.Template) error {
	engine := liquid.NewEngine()
	for _, text := range []string{tpl.Body, tpl.Subject} {
		if text == "" {
			continue
		}
		if _, err := engine.ParseString(text); err != nil {
			return fmt.Errorf("template %s does not parse: %w", tpl.ID, err)
		}
		for _, match := range placeholderRe.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(match[1])
			if !tpl.DeclaresVariable(name) {
				return &MissingVariableError{Placeholder: name, Reason: "not declared in template variable schema"}
			}
		}
	}
	return nil
}

// validate scans text for placeholders and fails closed on anything not
// declared in the schema or not supplied by the bindings.
func (r *Renderer) validate(tpl *domain.Template, text string, bindings map[string]interface{}) error {
	seen := map[string]bool{}
	for _, match := range placeholderRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		if seen[name] {
			continue
		}
		seen[name] = true

		if !tpl.DeclaresVariable(name) {
			return &MissingVariableError{Placeholder: name, Reason: "not declared in template variable schema"}
		}
		if !bindingExists(name, bindings) {
			return &MissingVariableError{Placeholder: name, Reason: "no value supplied in bindings"}
		}
	}
	return nil
}

func (r *Renderer) renderString(cacheKey, text string, bindings map[string]interface{}) (string, error) {
	if cached, ok := r.cache.Load(cacheKey + "\x00" + text); ok {
		return cached.(*liquid.Template).RenderString(bindings)
	}
	tpl, err := r.engine.ParseString(text)
	if err != nil {
		return "", err
	}
	r.cache.Store(cacheKey+"\x00"+text, tpl)
	return tpl.RenderString(bindings)
}

// bindingExists walks a dotted variable path through nested binding maps.
// A nil value or empty string counts as missing: sending "Dear ," is as bad
// as sending the raw placeholder.
func bindingExists(path string, bindings map[string]interface{}) bool {
	parts := strings.Split(path, ".")
	var current interface{} = bindings
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return false
		}
		current, ok = m[part]
		if !ok {
			return false
		}
	}
	if current == nil {
		return false
	}
	if s, ok := current.(string); ok && s == "" {
		return false
	}
	return true
}

// escapeBindings returns a deep copy of the bindings with every string leaf
// passed through the channel's formatter.
func escapeBindings(bindings map[string]interface{}, f formatter) map[string]interface{} {
	out := make(map[string]interface{}, len(bindings))
	for k, v := range bindings {
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = escapeBindings(val, f)
		case string:
			out[k] = f(val)
		default:
			out[k] = val
		}
	}
	return out
}
