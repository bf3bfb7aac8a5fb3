package main

import (
	"encoding/json"
	"fmt"
)

// Envelope is the uniform reply for one operation: either an indented JSON
// payload or an error message, never both.
type Envelope struct {
	Text    string
	IsError bool
}

func wrapSuccess(payload any) Envelope {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return wrapError(fmt.Errorf("failed to marshal result: %w", err))
	}
	return Envelope{Text: string(data)}
}

func wrapError(err error) Envelope {
	return Envelope{Text: "Error: " + err.Error(), IsError: true}
}
