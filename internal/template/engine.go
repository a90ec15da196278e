// Package template renders campaign and automation email content with
// Liquid, substituting deal fields into subject and body placeholders
// such as {{contact_name}} and {{deal_value}}.
package template

import (
	"fmt"
	"html"
	"log"
	"net/url"
	"strconv"
	"sync"

	"github.com/osteele/liquid"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// Engine wraps a Liquid engine with parsed-template caching. Rendering
// is always lax: a template that fails to parse or render comes back
// unchanged rather than failing the send, and missing variables render
// as empty strings, never as literal placeholder text.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewEngine creates a template engine with the CRM filter set.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// Default value: {{ contact_name | default: "there" }}
	e.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Currency formatting: {{ deal_value | currency }}
	e.engine.RegisterFilter("currency", func(value interface{}) string {
		var f float64
		switch v := value.(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return v
			}
			f = parsed
		default:
			return fmt.Sprintf("%v", value)
		}
		return fmt.Sprintf("$%.2f", f)
	})

	// URL encode: {{ email | urlencode }}
	e.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// HTML escape: {{ company | escape }}
	e.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

// Render substitutes binding values into the template. On parse or
// render errors the original source is returned so a bad template
// degrades to an unpersonalized send instead of a failed one.
func (e *Engine) Render(source string, binding map[string]interface{}) string {
	tpl, err := e.parse(source)
	if err != nil {
		log.Printf("[template] parse error, sending unrendered content: %v", err)
		return source
	}

	out, err := tpl.RenderString(binding)
	if err != nil {
		log.Printf("[template] render error, sending unrendered content: %v", err)
		return source
	}
	return out
}

func (e *Engine) parse(source string) (*liquid.Template, error) {
	if cached, ok := e.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := e.engine.ParseString(source)
	if err != nil {
		return nil, err
	}
	e.cache.Store(source, tpl)
	return tpl, nil
}

// DealBinding builds the substitution context for a deal. Every key is
// always present, so empty deal fields substitute as empty strings.
func DealBinding(deal *domain.PipelineDeal) map[string]interface{} {
	if deal == nil {
		return map[string]interface{}{
			"contact_name": "", "company": "", "email": "",
			"deal_value": "", "source": "", "title": "", "phone": "",
		}
	}
	return map[string]interface{}{
		"contact_name": deal.FullName,
		"company":      deal.Company,
		"email":        deal.Email,
		"deal_value":   deal.Value,
		"source":       deal.Source,
		"title":        deal.Title,
		"phone":        deal.Phone,
	}
}
