package envelope

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"pkt.systems/varsync/schema"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		path    []string
		payload string
	}{
		{name: "simple", path: []string{"server", "connection"}, payload: `{"currentURL":"file:///a.mkv"}`},
		{name: "deep", path: []string{"server", "bookmarks", "insert", "preview-1"}, payload: "x"},
		{name: "empty payload", path: []string{"varchive", "seek"}, payload: ""},
		{name: "unicode", path: []string{"varchive", "notification"}, payload: "über \"quoted\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire := Encode(tc.path, tc.payload)
			if wire == "" {
				t.Fatalf("expected wire text")
			}
			env, err := Decode(wire)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual([]string(env.Type), tc.path) {
				t.Fatalf("path mismatch: got %v want %v", env.Type, tc.path)
			}
			if env.Message != tc.payload {
				t.Fatalf("payload mismatch: got %q want %q", env.Message, tc.payload)
			}
		})
	}
}

func TestEncodeRecordDoubleEncodes(t *testing.T) {
	wire := EncodeRecord([]string{"server", "connection"}, schema.URLInfo{CurrentURL: "file:///a b.mkv"})
	var outer map[string]any
	if err := json.Unmarshal([]byte(wire), &outer); err != nil {
		t.Fatalf("outer: %v", err)
	}
	message, ok := outer["message"].(string)
	if !ok {
		t.Fatalf("expected string message, got %T", outer["message"])
	}
	var info schema.URLInfo
	if err := DecodeRecord(message, &info); err != nil {
		t.Fatalf("inner: %v", err)
	}
	if info.CurrentURL != "file:///a b.mkv" {
		t.Fatalf("unexpected url %q", info.CurrentURL)
	}
}

func TestEncodeRecordFailureReturnsEmpty(t *testing.T) {
	if got := EncodeRecord([]string{"server", "x"}, make(chan int)); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"type":`,
		"missing type":  `{"message":"hi"}`,
		"short type":    `{"type":["varchive"],"message":"hi"}`,
		"missing msg":   `{"type":["varchive","seek"]}`,
		"null segment":  `{"type":["varchive",null],"message":"1"}`,
		"wrong type":    `{"type":"varchive.seek","message":"1"}`,
		"message int":   `{"type":["varchive","seek"],"message":1}`,
		"empty payload": ``,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(text); !errors.Is(err, schema.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestDecodeRecordRejectsTrailingData(t *testing.T) {
	var info schema.URLInfo
	if err := DecodeRecord(`{"currentURL":"a"} {"currentURL":"b"}`, &info); !errors.Is(err, schema.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
