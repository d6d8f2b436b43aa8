package template

import (
	"reflect"
	"testing"
)

func TestRenderSinglePlaceholder(t *testing.T) {
	vars := NewVariables([2]string{"1", "Ana"})
	params := Render("Hi {{1}}", vars)
	if !reflect.DeepEqual(params, []string{"Ana"}) {
		t.Fatalf("expected [Ana], got %v", params)
	}
}

func TestRenderNoPlaceholders(t *testing.T) {
	vars := NewVariables([2]string{"1", "Ana"})
	params := Render("Hello there", vars)
	if params != nil {
		t.Fatalf("expected nil for body without placeholders, got %v", params)
	}
}

func TestRenderParameterCountMatchesPlaceholders(t *testing.T) {
	body := "Hi {{1}}, your order {{2}} ships to {{3}}. Bye {{1}}"
	params := Render(body, NewVariables())
	if len(params) != 3 {
		t.Fatalf("expected 3 params for 3 distinct placeholders, got %d", len(params))
	}
	for i, p := range params {
		if p != "" {
			t.Errorf("param %d: expected empty default, got %q", i+1, p)
		}
	}
}

func TestRenderPositionalFallback(t *testing.T) {
	// Keys do not match placeholder indexes; fall back to insertion order
	vars := NewVariables(
		[2]string{"name", "Ana"},
		[2]string{"city", "Lima"},
	)
	params := Render("Hi {{1}} from {{2}}", vars)
	if !reflect.DeepEqual(params, []string{"Ana", "Lima"}) {
		t.Fatalf("expected positional fallback [Ana Lima], got %v", params)
	}
}

func TestRenderNumericKeysWinOverPosition(t *testing.T) {
	vars := NewVariables(
		[2]string{"ignored", "zzz"},
		[2]string{"1", "Ana"},
	)
	params := Render("Hi {{1}}", vars)
	if !reflect.DeepEqual(params, []string{"Ana"}) {
		t.Fatalf("expected numeric key to win, got %v", params)
	}
}

func TestRenderMissingVariableIsEmpty(t *testing.T) {
	vars := NewVariables([2]string{"1", "Ana"})
	params := Render("{{1}} {{2}}", vars)
	if !reflect.DeepEqual(params, []string{"Ana", ""}) {
		t.Fatalf("expected [Ana \"\"], got %v", params)
	}
}

func TestParseVariablesKeepsOrder(t *testing.T) {
	vars, err := ParseVariables([]byte(`{"name":"Ana","city":"Lima","plan":"pro"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vars.Len() != 3 {
		t.Fatalf("expected 3 variables, got %d", vars.Len())
	}
	for i, want := range []string{"Ana", "Lima", "pro"} {
		got, ok := vars.At(i + 1)
		if !ok || got != want {
			t.Errorf("position %d: expected %q, got %q (ok=%v)", i+1, want, got, ok)
		}
	}
}

func TestParseVariablesEmpty(t *testing.T) {
	vars, err := ParseVariables(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vars.Len() != 0 {
		t.Fatalf("expected empty variables, got %d", vars.Len())
	}
}

func TestParseVariablesRejectsNonObject(t *testing.T) {
	if _, err := ParseVariables([]byte(`["a","b"]`)); err == nil {
		t.Fatal("expected error for JSON array")
	}
}

func TestBodyTextFindsBodyComponent(t *testing.T) {
	components := `[{"type":"HEADER","text":"Hello"},{"type":"BODY","text":"Hi {{1}}"},{"type":"FOOTER","text":"bye"}]`
	if got := BodyText(components); got != "Hi {{1}}" {
		t.Errorf("expected body component text, got %q", got)
	}
	// Case-insensitive type match
	if got := BodyText(`[{"type":"body","text":"lower"}]`); got != "lower" {
		t.Errorf("expected lowercase body match, got %q", got)
	}
	if got := BodyText(""); got != "" {
		t.Errorf("expected empty for no components, got %q", got)
	}
	if got := BodyText(`not json`); got != "" {
		t.Errorf("expected empty for malformed components, got %q", got)
	}
}

func TestPreviewSubstitutesParams(t *testing.T) {
	got := Preview("Hi {{1}}, code {{2}}", []string{"Ana", "1234"})
	if got != "Hi Ana, code 1234" {
		t.Errorf("unexpected preview: %q", got)
	}
	if got := Preview("no placeholders", nil); got != "no placeholders" {
		t.Errorf("unexpected preview: %q", got)
	}
}
