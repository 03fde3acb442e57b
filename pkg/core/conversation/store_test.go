package conversation

import (
	"fmt"
	"testing"

	"github.com/vozcredit/voz-gateway/pkg/core/form"
)

func strptr(s string) *string { return &s }

func TestAppendCapsHistory(t *testing.T) {
	s := NewStore(18)
	for i := 0; i < 25; i++ {
		s.Append(RoleUser, fmt.Sprintf("m%d", i))
	}
	hist := s.History()
	if len(hist) != 18 {
		t.Fatalf("len(history) = %d, want 18", len(hist))
	}
	// Oldest dropped first, relative order preserved.
	for i, msg := range hist {
		if want := fmt.Sprintf("m%d", i+7); msg.Content != want {
			t.Errorf("hist[%d] = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewStore(0)
	s.Append(RoleUser, "hola")
	h := s.History()
	h[0].Content = "mutated"
	if got := s.History()[0].Content; got != "hola" {
		t.Fatalf("store history mutated through returned slice: %q", got)
	}
}

func TestMergeAndFields(t *testing.T) {
	s := NewStore(0)
	s.MergeFields(form.Fields{Cedula: strptr("123")})
	s.MergeFields(form.Fields{Cedula: strptr("456")})

	f := s.Fields()
	if v, _ := f.Get(form.KeyCedula); v != "456" {
		t.Fatalf("cedula = %q, want 456", v)
	}

	// Mutating the returned copy must not touch the store.
	f.Set(form.KeyCedula, "999")
	stored := s.Fields()
	if v, _ := stored.Get(form.KeyCedula); v != "456" {
		t.Fatalf("store fields mutated through copy: %q", v)
	}
}

func TestSetField(t *testing.T) {
	s := NewStore(0)
	if err := s.SetField(form.KeyNombreCompleto, "Ana Pérez"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	got := s.Fields()
	if v, _ := got.Get(form.KeyNombreCompleto); v != "Ana Pérez" {
		t.Fatalf("nombreCompleto = %q", v)
	}
	if err := s.SetField("bogus", "x"); err == nil {
		t.Fatal("SetField with unknown key should fail")
	}
}

func TestReset(t *testing.T) {
	s := NewStore(0)
	s.Append(RoleAssistant, "hola")
	s.SetField(form.KeyCedula, "123")
	s.Reset()

	if s.Len() != 0 {
		t.Fatalf("Len() = %d after reset", s.Len())
	}
	if s.Complete() {
		t.Fatal("Complete() = true after reset")
	}
	after := s.Fields()
	if _, ok := after.Get(form.KeyCedula); ok {
		t.Fatal("cedula survived reset")
	}
}
