// Package envelope encodes and decodes the {type, message} wire envelope exchanged
// with the archive peer. Payload records are JSON-encoded into the message string,
// so a record travels double-encoded inside the outer object.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pkt.systems/varsync/schema"
)

// MinTypePathLen is the shortest routable type path (domain + route).
const MinTypePathLen = 2

// Envelope is a decoded wire message.
type Envelope struct {
	Type    schema.TypePath
	Message string
}

type wireEnvelope struct {
	Type    []string `json:"type"`
	Message string   `json:"message"`
}

type wireEnvelopeIn struct {
	Type    []*string `json:"type"`
	Message *string   `json:"message"`
}

// Encode serializes an envelope. It returns "" when serialization fails; callers
// treat an empty string as "do not send".
func Encode(typePath []string, payload string) string {
	data, err := json.Marshal(wireEnvelope{Type: typePath, Message: payload})
	if err != nil {
		return ""
	}
	return string(data)
}

// EncodeRecord serializes record to JSON and wraps it as the envelope message.
func EncodeRecord(typePath []string, record any) string {
	payload, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	return Encode(typePath, string(payload))
}

// Decode parses wire text into an Envelope. The type path must hold at least
// MinTypePathLen non-null segments and the message field must be present.
func Decode(text string) (Envelope, error) {
	var in wireEnvelopeIn
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", schema.ErrDecode, err)
	}
	if len(in.Type) < MinTypePathLen {
		return Envelope{}, fmt.Errorf("%w: type path has %d segments", schema.ErrDecode, len(in.Type))
	}
	if in.Message == nil {
		return Envelope{}, fmt.Errorf("%w: message missing", schema.ErrDecode)
	}
	path := make(schema.TypePath, 0, len(in.Type))
	for i, seg := range in.Type {
		if seg == nil {
			return Envelope{}, fmt.Errorf("%w: null type segment at %d", schema.ErrDecode, i)
		}
		path = append(path, *seg)
	}
	return Envelope{Type: path, Message: *in.Message}, nil
}

// DecodeRecord parses a payload record into out.
func DecodeRecord(payload string, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrDecode, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after record", schema.ErrDecode)
	}
	return nil
}
