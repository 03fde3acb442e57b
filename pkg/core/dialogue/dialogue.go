// Package dialogue defines the interpret contract: one conversational turn
// in, a structured verdict out (reply text, extracted form slots, completion
// flag). Provider implementations live in subpackages.
package dialogue

import (
	"context"

	"github.com/vozcredit/voz-gateway/pkg/core/conversation"
	"github.com/vozcredit/voz-gateway/pkg/core/form"
)

// TurnRequest carries everything the dialogue service needs for one turn.
// Utterance is the latest transcribed user text; it is empty for the
// greeting turn and is deliberately kept out of History so a failed turn
// leaves the log untouched.
type TurnRequest struct {
	History   []conversation.Message
	Fields    form.Fields
	Utterance string
}

// TurnResult is the dialogue service's verdict for one turn. Extracted
// entries are either a new/corrected value or absent ("not mentioned this
// turn"); absent never means "clear this slot".
type TurnResult struct {
	Reply     string
	Extracted form.Fields
	Complete  bool
}

// Provider is the interface for dialogue services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Interpret runs one turn and returns the structured result.
	Interpret(ctx context.Context, req *TurnRequest) (*TurnResult, error)
}
