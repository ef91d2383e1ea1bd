package server

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/entity"
	"github.com/joseph-ayodele/fichas-scanner/internal/extract"
	"github.com/joseph-ayodele/fichas-scanner/internal/pipeline"
	"github.com/joseph-ayodele/fichas-scanner/internal/publish"
)

func fieldsValue(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func recordValue(rec extract.Record) map[string]any {
	return fieldsValue(rec.Fields())
}

func viewStruct(v pipeline.View) (*structpb.Struct, error) {
	m := map[string]any{
		"state":      string(v.State),
		"busy":       v.Busy,
		"has_result": v.HasResult,
		"result":     recordValue(v.Result),
		"updated_at": v.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if v.LastError != nil {
		m["last_error"] = v.LastError.Error()
	}
	if v.LastScanID != uuid.Nil {
		m["last_scan_id"] = v.LastScanID.String()
	}
	return structpb.NewStruct(m)
}

func scanValue(sc *entity.Scan) map[string]any {
	m := map[string]any{
		"id":           sc.ID.String(),
		"source":       sc.Source,
		"status":       string(sc.Status),
		"started_at":   sc.StartedAt.UTC().Format(time.RFC3339Nano),
		"needs_review": sc.NeedsReview,
		"fields":       fieldsValue(sc.Fields),
	}
	if sc.Engine != nil {
		m["engine"] = *sc.Engine
	}
	if sc.FinishedAt != nil {
		m["finished_at"] = sc.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	if sc.DurationMS != nil {
		m["duration_ms"] = float64(*sc.DurationMS)
	}
	if sc.OCRText != nil {
		m["ocr_text"] = *sc.OCRText
	}
	if sc.Confidence != nil {
		m["confidence"] = float64(*sc.Confidence)
	}
	if sc.ErrorMessage != nil {
		m["error_message"] = *sc.ErrorMessage
	}
	return m
}

func messageStruct(msg publish.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type": msg.Type,
		"data": fieldsValue(msg.Data),
	})
}

// MessageFromStruct converts a streamed hand-off message back to its Go form.
func MessageFromStruct(st *structpb.Struct) (publish.Message, error) {
	m := st.AsMap()
	typ, _ := m["type"].(string)
	if typ != publish.MessageType {
		return publish.Message{}, fmt.Errorf("unexpected message type %q", typ)
	}
	return publish.Message{Type: typ, Data: stringMap(m["data"])}, nil
}

// RecordFromStruct reads the ten form fields from a struct value.
func RecordFromStruct(v any) extract.Record {
	return extract.FromFields(stringMap(v))
}

func stringMap(v any) map[string]string {
	out := make(map[string]string, len(constants.FieldKeys))
	m, _ := v.(map[string]any)
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
