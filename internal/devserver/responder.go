package devserver

import (
	"context"
	"fmt"
	"strings"
)

// Responder produces the assistant's reply to one user message.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, message string) (string, error)

// Reply calls f(ctx, message).
func (f ResponderFunc) Reply(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

// cannedTopic maps keywords to a fixed answer.
type cannedTopic struct {
	keywords []string
	answer   string
}

var cannedTopics = []cannedTopic{
	{
		keywords: []string{"screening", "vetting", "background", "credit"},
		answer:   "Tenant screening runs identity, credit and reference checks. Open a tenant's profile and choose Request Screening to start one.",
	},
	{
		keywords: []string{"document", "upload", "payslip", "id"},
		answer:   "Tenants can upload proof of identity, payslips and bank statements from the Documents tab. Accepted formats are PDF, JPG and PNG.",
	},
	{
		keywords: []string{"property", "properties", "listing"},
		answer:   "Add a property from the Properties page. You can attach tenants and documents to it once it is created.",
	},
	{
		keywords: []string{"tenant", "tenants"},
		answer:   "The Tenants page lists everyone linked to your properties, with their screening status and uploaded documents.",
	},
}

// CannedResponder answers common dashboard questions from a fixed table and
// echoes anything else.
type CannedResponder struct{}

// Reply implements Responder.
func (CannedResponder) Reply(_ context.Context, message string) (string, error) {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, topic := range cannedTopics {
		for _, kw := range topic.keywords {
			for _, w := range words {
				if w == kw {
					return topic.answer, nil
				}
			}
		}
	}
	return fmt.Sprintf("You said: %q. Ask me about tenant screening, documents or properties.", message), nil
}
