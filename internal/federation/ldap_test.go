package federation

import "testing"

func TestConfigString_FallsBackToDefault(t *testing.T) {
	cfg := map[string]interface{}{"uid_attribute": "uid"}
	if got := configString(cfg, "uid_attribute", "fallback"); got != "uid" {
		t.Fatalf("want uid, got %s", got)
	}
	if got := configString(cfg, "missing_key", "fallback"); got != "fallback" {
		t.Fatalf("want fallback, got %s", got)
	}
	if got := configString(cfg, "wrong_type", "fallback"); got != "fallback" {
		t.Fatalf("want fallback for missing key, got %s", got)
	}
}
