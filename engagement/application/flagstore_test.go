package application

import (
	"context"
	"testing"
)

type memKV struct {
	data     map[string]map[string]string
	loadErr  error
	storeErr error
}

func newMemKV() *memKV { return &memKV{data: make(map[string]map[string]string)} }

func (m *memKV) Load(_ context.Context, scope, key string) (string, bool, error) {
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	v, ok := m.data[scope][key]
	return v, ok, nil
}

func (m *memKV) Store(_ context.Context, scope, key, value string) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	if m.data[scope] == nil {
		m.data[scope] = make(map[string]string)
	}
	m.data[scope][key] = value
	return nil
}

func TestFlagStore_SetThenHas(t *testing.T) {
	kv := newMemKV()
	a := NewFlagStore(kv, "device-a")
	b := NewFlagStore(kv, "device-b")

	a.Set("liked:p1")
	if !a.Has("liked:p1") {
		t.Fatalf("expected flag to be set in its scope")
	}
	if b.Has("liked:p1") {
		t.Fatalf("flags must not leak across scopes")
	}
}

func TestFlagStore_BackendErrorsAreSwallowed(t *testing.T) {
	kv := newMemKV()
	kv.storeErr = errBoom
	s := NewFlagStore(kv, "device-a", WithFlagName("durable"))

	s.Set("liked:p1")
	kv.storeErr = nil
	if s.Has("liked:p1") {
		t.Fatalf("failed write must not be remembered")
	}

	kv.data["device-a"] = map[string]string{"liked:p1": "1"}
	kv.loadErr = errBoom
	if s.Has("liked:p1") {
		t.Fatalf("failed read must be treated as unset")
	}
}

func TestFlagStore_NoScopeIsNoop(t *testing.T) {
	kv := newMemKV()
	s := NewFlagStore(kv, "")

	s.Set("liked:p1")
	if s.Has("liked:p1") || len(kv.data) != 0 {
		t.Fatalf("expected no-op without a scope")
	}

	var nilStore *FlagStore
	if nilStore.Has("x") {
		t.Fatalf("nil store must report unset")
	}
}
