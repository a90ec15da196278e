package template

import (
	"testing"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

func TestRenderSubstitutesDealFields(t *testing.T) {
	e := NewEngine()
	deal := &domain.PipelineDeal{FullName: "Alice", Company: "Acme", Email: "alice@acme.com", Value: 12500}

	out := e.Render("Hi {{contact_name}} from {{company}}", DealBinding(deal))
	if out != "Hi Alice from Acme" {
		t.Fatalf("unexpected render: %q", out)
	}
}

func TestRenderMissingFieldsAreEmpty(t *testing.T) {
	e := NewEngine()
	deal := &domain.PipelineDeal{FullName: "Bob"}

	out := e.Render("Hi {{contact_name}}, re {{company}}{{nonexistent}}", DealBinding(deal))
	if out != "Hi Bob, re " {
		t.Fatalf("missing fields not substituted as empty: %q", out)
	}
}

func TestRenderNeverLeavesLiteralPlaceholders(t *testing.T) {
	e := NewEngine()
	out := e.Render("Value: {{deal_value}}", DealBinding(nil))
	if out != "Value: " {
		t.Fatalf("placeholder left in output: %q", out)
	}
}

func TestRenderBadTemplateReturnsSource(t *testing.T) {
	e := NewEngine()
	src := "Hello {% if %}"
	out := e.Render(src, DealBinding(nil))
	if out != src {
		t.Fatalf("bad template did not degrade to source: %q", out)
	}
}

func TestCurrencyFilter(t *testing.T) {
	e := NewEngine()
	deal := &domain.PipelineDeal{Value: 12500}
	out := e.Render("{{deal_value | currency}}", DealBinding(deal))
	if out != "$12500.00" {
		t.Fatalf("currency filter: %q", out)
	}
}

func TestDefaultFilter(t *testing.T) {
	e := NewEngine()
	out := e.Render(`Hi {{contact_name | default: "there"}}`, DealBinding(nil))
	if out != "Hi there" {
		t.Fatalf("default filter: %q", out)
	}
}
