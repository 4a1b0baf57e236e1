package config

import "testing"

func TestScanSecretBindings_TranslatesPrefixedEnvVars(t *testing.T) {
	env := []string{
		"LOOM_SECRET_AZURE_OPENAI_KEY=sk-abc123",
		"LOOM_SECRET_DB_PASSWORD=hunter2",
		"PATH=/usr/bin",     // no prefix: ignored
		"LOOM_SECRET_EMPTY=", // empty value: ignored
	}
	bindings := scanSecretBindings(env)

	if bindings["azure-openai-key"] != "sk-abc123" {
		t.Errorf("azure-openai-key = %q, want sk-abc123", bindings["azure-openai-key"])
	}
	if bindings["db-password"] != "hunter2" {
		t.Errorf("db-password = %q, want hunter2", bindings["db-password"])
	}
	if _, ok := bindings["empty"]; ok {
		t.Error("an empty-valued binding should be skipped")
	}
	if len(bindings) != 2 {
		t.Errorf("got %d bindings, want 2: %+v", len(bindings), bindings)
	}
}

func TestScanSecretBindings_NoMatchesReturnsEmptyMap(t *testing.T) {
	bindings := scanSecretBindings([]string{"HOME=/root", "SHELL=/bin/bash"})
	if len(bindings) != 0 {
		t.Errorf("got %+v, want empty", bindings)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	rt, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rt.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q, want the default", rt.RedisURL)
	}
	if rt.SQLitePath != "./loom.db" {
		t.Errorf("SQLitePath = %q, want the default", rt.SQLitePath)
	}
}
