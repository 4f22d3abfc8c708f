package cli

import (
	"fmt"
	"io"
)

// Result is a single message with optional details.
// Created via Output.Result().
type Result struct {
	out     *Output
	meta    Meta
	message string
	details []kvPair
}

// With adds a detail key-value pair.
func (r *Result) With(key string, value any) *Result {
	r.details = append(r.details, kvPair{key: key, value: value})
	return r
}

// Render outputs the result in the configured format.
func (r *Result) Render() error {
	return r.out.Render(r)
}

// Meta returns the metadata.
func (r *Result) Meta() Meta {
	return r.meta
}

// RenderText writes the message followed by indented details.
func (r *Result) RenderText(w io.Writer, _ bool) error {
	if _, err := fmt.Fprintln(w, r.message); err != nil {
		return err
	}
	return writeDetails(w, r.details)
}

// Data returns message and details as an object.
func (r *Result) Data() any {
	result := make(map[string]any, len(r.details)+1)
	result["message"] = r.message
	for _, d := range r.details {
		result[toKey(d.key)] = d.value
	}
	return result
}

// Error is a structured error result.
// Created via Output.Error().
type Error struct {
	out     *Output
	meta    Meta
	err     error
	code    string
	details []kvPair
}

// WithCode sets an error code.
func (e *Error) WithCode(code string) *Error {
	e.code = code
	return e
}

// With adds a detail key-value pair.
func (e *Error) With(key string, value any) *Error {
	e.details = append(e.details, kvPair{key: key, value: value})
	return e
}

// Render outputs the error in the configured format.
func (e *Error) Render() error {
	return e.out.Render(e)
}

// Meta returns the metadata.
func (e *Error) Meta() Meta {
	return e.meta
}

// RenderText writes the error.
func (e *Error) RenderText(w io.Writer, _ bool) error {
	var err error
	if e.code != "" {
		_, err = fmt.Fprintf(w, "Error [%s]: %v\n", e.code, e.err)
	} else {
		_, err = fmt.Fprintf(w, "Error: %v\n", e.err)
	}
	if err != nil {
		return err
	}
	return writeDetails(w, e.details)
}

// Data returns the error as an object.
func (e *Error) Data() any {
	result := map[string]any{"error": e.err.Error()}
	if e.code != "" {
		result["code"] = e.code
	}
	for _, d := range e.details {
		result[toKey(d.key)] = d.value
	}
	return result
}

func writeDetails(w io.Writer, details []kvPair) error {
	width := 0
	for _, d := range details {
		width = max(width, len(d.key)+1)
	}
	for _, d := range details {
		if _, err := fmt.Fprintf(w, "  %-*s  %v\n", width, d.key+":", d.value); err != nil {
			return err
		}
	}
	return nil
}
