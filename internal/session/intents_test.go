package session

import (
	"reflect"
	"testing"
)

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		status Status
		msg    string
		want   Intent
	}{
		{StatusIdle, "create supplier", IntentScenario},
		{StatusPreviewAwaiting, "yes", IntentConfirm},
		{StatusPreviewAwaiting, "Yes!", IntentConfirm},
		{StatusPreviewAwaiting, "nope", IntentDecline},
		{StatusPreviewAwaiting, "please add an assertion on the toast", IntentFeedback},
		{StatusAwaitingDatasheet, "use defaults", IntentUseDefaults},
		{StatusAwaitingDatasheet, "datasheet MyData.xlsx", IntentDatasheet},
		{StatusScriptReady, "trial", IntentTrial},
		{StatusScriptReady, "push it", IntentPush},
		{StatusScriptReady, "compare coverage", IntentCompare},
		{StatusIdle, "show me the latest flow", IntentLatestFlow},
		{StatusScriptReady, "use a better locator for the submit button", IntentFeedback},
		{StatusIdle, "yes", IntentScenario}, // nothing to confirm
	}
	for _, tc := range cases {
		if got := DetectIntent(tc.status, tc.msg); got != tc.want {
			t.Errorf("DetectIntent(%s, %q) = %s, want %s", tc.status, tc.msg, got, tc.want)
		}
	}
}

func TestWantsRefinedSteps(t *testing.T) {
	if !WantsRefinedSteps("create supplier with Refined steps") {
		t.Error("explicit request not detected")
	}
	if WantsRefinedSteps("create a refinery inspection") {
		t.Error("matched inside another word")
	}
}

func TestParseDatasheetMessage(t *testing.T) {
	got, ok := ParseDatasheetMessage("datasheet SupplierData.xlsx reference Supplier001 idname SupplierID")
	if !ok {
		t.Fatal("not parsed")
	}
	want := DatasheetFields{Name: "SupplierData.xlsx", ReferenceID: "Supplier001", IDName: "SupplierID"}
	if got != want {
		t.Fatalf("got %+v", got)
	}

	partial, ok := ParseDatasheetMessage("datasheet OnlyName.xlsx")
	if !ok || partial.Name != "OnlyName.xlsx" || partial.ReferenceID != "" {
		t.Fatalf("partial = %+v, ok=%v", partial, ok)
	}

	if _, ok := ParseDatasheetMessage("no sheet mentioned"); ok {
		t.Fatal("parsed garbage")
	}
}

func TestDefaultDatasheetFields(t *testing.T) {
	got := DefaultDatasheetFields("create supplier")
	want := DatasheetFields{
		Name:        "CreateSupplierData.xlsx",
		ReferenceID: "CreateSupplier001",
		IDName:      "CreateSupplierID",
	}
	if got != want {
		t.Fatalf("got %+v", got)
	}
	if DefaultDatasheetFields("").Name != "ScenarioData.xlsx" {
		t.Error("empty scenario should fall back to a generic stem")
	}
}

func TestExtractTestIDs(t *testing.T) {
	text := `please run("TC-101") and also test('TC-202'), then run("TC-101") again`
	got := ExtractTestIDs(text)
	want := []string{"TC-101", "TC-202"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractTestIDs = %v, want %v", got, want)
	}
	if ids := ExtractTestIDs("nothing here"); ids != nil {
		t.Fatalf("got %v for plain text", ids)
	}
}
