package utils

import (
	"encoding/json"
	"fmt"
	"io"
)

// Helper functions for SSE formatting

// WriteSSEEvent writes a named event with a JSON payload
func WriteSSEEvent(w io.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(w, "event: %s\ndata: {\"message\": \"Error creating event payload\"}\n\n", event)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// WriteSSEData writes an unnamed data-only event
func WriteSSEData(w io.Writer, data string) {
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// WriteSSEComment writes a comment line, used as a keep-alive signal
func WriteSSEComment(w io.Writer, comment string) {
	fmt.Fprintf(w, ": %s\n\n", comment)
}
