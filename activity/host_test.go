package activity

import (
	"context"
	"testing"
)

type echoTool struct{}

func (echoTool) Name() string { return "echo" }
func (echoTool) Call(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"echoed": input["value"]}, nil
}

func TestHost_RunActivityDispatchesToRegisteredTool(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{})
	host := NewHost(reg)

	out, err := host.RunActivity(context.Background(), "echo", map[string]interface{}{"value": "hi"})
	if err != nil {
		t.Fatalf("RunActivity() error = %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["echoed"] != "hi" {
		t.Errorf("got %+v", out)
	}
}

func TestHost_RunActivityUnknownNameErrors(t *testing.T) {
	host := NewHost(NewRegistry())
	if _, err := host.RunActivity(context.Background(), "ghost", nil); err == nil {
		t.Error("expected an error for an unregistered activity name")
	}
}

func TestRegistry_RegisterReplacesExisting(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{})
	if _, ok := reg.Lookup("echo"); !ok {
		t.Fatal("expected echo to be registered")
	}
	reg.Register(echoTool{})
	if _, ok := reg.Lookup("echo"); !ok {
		t.Fatal("re-registering the same name should still leave it looked-up-able")
	}
}
