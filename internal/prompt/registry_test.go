package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetReturnsDefaultsForAllStageKeys(t *testing.T) {
	r := NewRegistry()
	for _, key := range []string{
		KeyRiskFlags, KeyStrategicFit, KeyCustomerReadiness,
		KeyStrategicUpside, KeyCompetitiveEdge, KeyChat,
	} {
		tpl, err := r.Get(key)
		if err != nil {
			t.Errorf("Get(%s) failed: %v", key, err)
			continue
		}
		if tpl == "" {
			t.Errorf("Get(%s) returned empty template", key)
		}
	}

	if _, err := r.Get("nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestScoringTemplatesCarryWeightsAndContract(t *testing.T) {
	r := NewRegistry()

	fit, _ := r.Get(KeyStrategicFit)
	for _, want := range []string{"Market Alignment: 10%", "Business Justification: 5%", `"scoreBreakdown"`, `"totalScore"`} {
		if !strings.Contains(fit, want) {
			t.Errorf("strategic fit template missing %q", want)
		}
	}

	flags, _ := r.Get(KeyRiskFlags)
	for _, want := range []string{`"flag"`, `"action"`, `"reason"`, `"source"`} {
		if !strings.Contains(flags, want) {
			t.Errorf("risk flags template missing %q", want)
		}
	}
}

func TestRenderSubstitutesOnlyProvidedVars(t *testing.T) {
	r := NewRegistry()
	out, err := r.Render(KeyStrategicFit, map[string]string{"context": "ACME RFP body"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "ACME RFP body") {
		t.Error("context not substituted")
	}
	if strings.Contains(out, "{context}") {
		t.Error("placeholder left behind")
	}
	// JSON braces in the example output must survive rendering.
	if !strings.Contains(out, `"scoreBreakdown"`) || !strings.Contains(out, "{") {
		t.Error("JSON example mangled by rendering")
	}
}

func TestLoadOverridesShadowsDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, KeyChat+".txt"), []byte("custom chat: {question}"), 0644); err != nil {
		t.Fatal(err)
	}
	// Unknown keys and empty files are ignored.
	os.WriteFile(filepath.Join(dir, "mystery.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, KeyRiskFlags+".txt"), []byte("   \n"), 0644)

	r := NewRegistry()
	if err := r.LoadOverrides(dir); err != nil {
		t.Fatalf("LoadOverrides failed: %v", err)
	}

	chat, _ := r.Get(KeyChat)
	if chat != "custom chat: {question}" {
		t.Errorf("override not applied: %q", chat)
	}
	flags, _ := r.Get(KeyRiskFlags)
	if !strings.Contains(flags, "RED FLAGS") {
		t.Error("empty override should leave default in place")
	}

	r.ResetOverrides()
	chat, _ = r.Get(KeyChat)
	if chat == "custom chat: {question}" {
		t.Error("ResetOverrides did not restore default")
	}
}

func TestLoadOverridesMissingDirIsNotAnError(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadOverrides(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Errorf("missing dir should not error, got %v", err)
	}
}
