package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/vozcredit/voz-gateway/pkg/core/conversation"
	"github.com/vozcredit/voz-gateway/pkg/core/dialogue"
	"github.com/vozcredit/voz-gateway/pkg/core/form"
)

func TestVerdictSchemaShape(t *testing.T) {
	s := verdictSchema()
	if s.Type != genai.TypeObject {
		t.Fatalf("schema type = %v", s.Type)
	}
	extracted, ok := s.Properties["extractedFields"]
	if !ok {
		t.Fatal("schema missing extractedFields")
	}
	if len(extracted.Properties) != len(form.Keys) {
		t.Fatalf("extractedFields has %d slots, want %d", len(extracted.Properties), len(form.Keys))
	}
	if len(extracted.Required) != len(form.Keys) {
		t.Fatalf("extractedFields requires %d slots, want %d", len(extracted.Required), len(form.Keys))
	}
	for _, key := range form.Keys {
		slot, ok := extracted.Properties[key]
		if !ok {
			t.Errorf("schema missing slot %q", key)
			continue
		}
		if slot.Nullable == nil || !*slot.Nullable {
			t.Errorf("slot %q not nullable", key)
		}
	}
}

func TestBuildContents(t *testing.T) {
	contents := buildContents(&dialogue.TurnRequest{
		History: []conversation.Message{
			{Role: conversation.RoleAssistant, Content: "Hola"},
			{Role: conversation.RoleUser, Content: "Buenas"},
		},
		Utterance: "mi cédula es 123456",
	})
	if len(contents) != 3 {
		t.Fatalf("len(contents) = %d, want 3", len(contents))
	}
	if contents[0].Role != genai.RoleModel {
		t.Errorf("contents[0].Role = %q, want model", contents[0].Role)
	}
	if contents[2].Role != genai.RoleUser {
		t.Errorf("contents[2].Role = %q, want user", contents[2].Role)
	}
}

func TestBuildContentsGreeting(t *testing.T) {
	contents := buildContents(&dialogue.TurnRequest{})
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d, want 1 nudge entry", len(contents))
	}
	if contents[0].Role != genai.RoleUser {
		t.Errorf("greeting nudge role = %q", contents[0].Role)
	}
}
