package evidence

import (
	"strings"
	"testing"
)

func TestFormatRefinedStepsLimit(t *testing.T) {
	steps := make([]Step, 8)
	for i := range steps {
		steps[i] = Step{Ordinal: i + 1, Action: "step action"}
	}
	out := FormatRefinedSteps(steps, 6)
	if !strings.Contains(out, "... and 2 more steps") {
		t.Fatalf("missing overflow marker:\n%s", out)
	}
	if strings.Count(out, "step action") != 6 {
		t.Fatalf("wrong number of rendered steps:\n%s", out)
	}
}

func TestScriptLocators(t *testing.T) {
	script := `
		await page.locator('#submit').click();
		await page.getByRole('button').click();
		await page.locator('#submit').hover();
	`
	got := ScriptLocators(script)
	if len(got) != 2 || got[0] != "#submit" || got[1] != "button" {
		t.Fatalf("ScriptLocators = %v", got)
	}
}

func TestCompareCoverage(t *testing.T) {
	steps := []Step{
		{Action: "submit", Locators: map[string]string{"css": "#submit"}},
		{Action: "cancel", Locators: map[string]string{"css": "#cancel"}},
	}
	script := `await page.locator('#submit').click();
await page.locator('#brand-new').click();`

	out := CompareCoverage(script, steps)
	for _, want := range []string{"1 reused", "1 introduced", "1 recorded but unused", "#submit", "#brand-new", "#cancel"} {
		if !strings.Contains(out, want) {
			t.Errorf("coverage report missing %q:\n%s", want, out)
		}
	}
}
