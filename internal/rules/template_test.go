package rules

import "testing"

func TestCompileTemplateRendersKnownTokens(t *testing.T) {
	tmpl, err := CompileTemplate("%F %H")
	if err != nil {
		t.Fatalf("CompileTemplate: %v", err)
	}
	got := tmpl.Render(RenderContext{TemperatureFx10: 725, Humidity: 45})
	if got != "72.5 45" {
		t.Errorf("Render = %q, want %q", got, "72.5 45")
	}
}

func TestCompileTemplateAllTokens(t *testing.T) {
	tmpl, err := CompileTemplate("%N/%I %f %c %C %B %b 100%%")
	if err != nil {
		t.Fatalf("CompileTemplate: %v", err)
	}
	got := tmpl.Render(RenderContext{
		SensorName:      "outside",
		RuleID:          "r1",
		TemperatureFx10: 725,
		TemperatureCx10: 231,
		BatteryOK:       true,
	})
	want := "outside/r1 725 231 23.1 1 OK 100%"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestCompileTemplateUnknownTokenErrors(t *testing.T) {
	if _, err := CompileTemplate("%Q"); err == nil {
		t.Fatalf("CompileTemplate: want error for unknown token %%Q")
	}
}

func TestCompileTemplateTrailingPercentErrors(t *testing.T) {
	if _, err := CompileTemplate("value: %"); err == nil {
		t.Fatalf("CompileTemplate: want error for bare trailing %%")
	}
}

func TestRenderTruncatesPastBufferLimit(t *testing.T) {
	tmpl, err := CompileTemplate("x")
	if err != nil {
		t.Fatalf("CompileTemplate: %v", err)
	}
	long := make([]token, 0, maxMessageBytes+10)
	for i := 0; i < maxMessageBytes+10; i++ {
		long = append(long, token{kind: tokLiteral, literal: "x"})
	}
	tmpl.tokens = long
	got := tmpl.Render(RenderContext{})
	if len(got) != maxMessageBytes-1 {
		t.Errorf("len(Render) = %d, want %d", len(got), maxMessageBytes-1)
	}
}
