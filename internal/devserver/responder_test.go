package devserver

import (
	"context"
	"strings"
	"testing"
)

func TestCannedResponder(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"screening", "How does tenant screening work?", "Tenant screening runs"},
		{"documents", "Which document types can I upload?", "Tenants can upload"},
		{"property", "How do I add a property", "Add a property"},
		{"fallback", "hello", `You said: "hello".`},
	}

	r := CannedResponder{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Reply(context.Background(), tt.message)
			if err != nil {
				t.Fatalf("Reply() error = %v", err)
			}
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Reply(%q) = %q, want prefix %q", tt.message, got, tt.want)
			}
		})
	}
}
