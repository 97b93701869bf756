// Package codec encodes worker messages for transport between the
// dispatcher and its background contexts.
//
// Messages travel as a protobuf google.protobuf.Struct with the fields
// pooledWorkerId, type and data. Data must be JSON-like: anything
// structpb.NewValue accepts directly, or anything encoding/json can
// marshal, which is normalised first.
package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// Marshal encodes m.
func Marshal(m domain.Message) ([]byte, error) {
	data, err := toValue(m.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %q data: %w", m.Type, err)
	}
	st := &structpb.Struct{Fields: map[string]*structpb.Value{
		"pooledWorkerId": structpb.NewNumberValue(float64(m.PooledWorkerID)),
		"type":           structpb.NewStringValue(m.Type),
		"data":           data,
	}}
	return proto.Marshal(st)
}

// Unmarshal decodes a message produced by Marshal. Numbers in Data come back
// as float64 and objects as map[string]any.
func Unmarshal(b []byte) (domain.Message, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	typ := st.Fields["type"].GetStringValue()
	if typ == "" {
		return domain.Message{}, fmt.Errorf("decode message: missing type")
	}
	id, ok := st.Fields["pooledWorkerId"]
	if !ok {
		return domain.Message{}, fmt.Errorf("decode message: missing pooledWorkerId")
	}
	return domain.Message{
		PooledWorkerID: int(id.GetNumberValue()),
		Type:           typ,
		Data:           st.Fields["data"].AsInterface(),
	}, nil
}

// Clone copies m through the wire format, so the result shares no memory
// with the original.
func Clone(m domain.Message) (domain.Message, error) {
	b, err := Marshal(m)
	if err != nil {
		return domain.Message{}, err
	}
	return Unmarshal(b)
}

func toValue(v any) (*structpb.Value, error) {
	if val, err := structpb.NewValue(v); err == nil {
		return val, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// Int reads a numeric field from decoded message data.
func Int(data any, key string) (int, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return 0, false
	}
	switch n := m[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// String reads a string field from decoded message data.
func String(data any, key string) (string, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

// Decode converts decoded message data into v through JSON.
func Decode(data any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
