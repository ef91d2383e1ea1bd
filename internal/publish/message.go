// Package publish hands extracted records to the form-filling consumer over
// an untargeted broadcast channel.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
)

// MessageType tags hand-off messages for the form filler.
const MessageType = "FILL_DESBRAVADOR_FORM"

// Message is the hand-off payload: {"type": ..., "data": {ten keys}}.
type Message struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// Publisher delivers a record to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, rec extract.Record) error
}

// BuildMessage wraps rec in a hand-off message. Data always carries all ten
// keys.
func BuildMessage(rec extract.Record) Message {
	return Message{Type: MessageType, Data: rec.Fields()}
}

// Record converts the message data back into a record.
func (m Message) Record() extract.Record {
	return extract.FromFields(m.Data)
}

// Encode marshals and validates the message.
func (m Message) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	if err := Validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Decode parses and validates a hand-off message.
func Decode(b []byte) (Message, error) {
	if err := Validate(b); err != nil {
		return Message{}, err
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return m, nil
}

// MessageSchema returns the JSON schema of a hand-off message.
func MessageSchema() map[string]any {
	props := make(map[string]any, len(constants.FieldKeys))
	for _, k := range constants.FieldKeys {
		props[k] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"type", "data"},
		"properties": map[string]any{
			"type": map[string]any{"const": MessageType},
			"data": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           props,
				"required":             constants.FieldKeys,
			},
		},
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(MessageSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("message.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("message.json")
	})
	return schema, schemaErr
}

// Validate checks raw JSON against MessageSchema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("message does not match schema: %w", err)
	}
	return nil
}
