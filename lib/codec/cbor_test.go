// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type sampleRequest struct {
	Action string `cbor:"action"`
}

type sampleStatus struct {
	State   string        `cbor:"state"`
	Stored  int           `cbor:"stored"`
	Uptime  time.Duration `cbor:"uptime"`
	Started time.Time     `cbor:"started"`
	Detail  string        `cbor:"detail,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]int{"zeta": 1, "alpha": 2, "mid": 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Marshal(map[string]int{"mid": 3, "alpha": 2, "zeta": 1})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs: %x vs %x", i, again, first)
		}
	}
}

func TestStreamCarriesConsecutiveValues(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	if err := encoder.Encode(sampleRequest{Action: "status"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := encoder.Encode(sampleRequest{Action: "other"}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"status", "other"} {
		var request sampleRequest
		if err := decoder.Decode(&request); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if request.Action != want {
			t.Errorf("action = %q, want %q", request.Action, want)
		}
	}
}

func TestTimeAndDurationFields(t *testing.T) {
	started := time.Date(2024, 1, 1, 12, 0, 0, 500, time.UTC)
	data, err := Marshal(sampleStatus{State: "running", Stored: 4, Uptime: 90 * time.Second, Started: started})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleStatus
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Uptime != 90*time.Second {
		t.Errorf("uptime = %v", decoded.Uptime)
	}
	if !decoded.Started.Equal(started) {
		t.Errorf("started = %v, want %v", decoded.Started, started)
	}
}

func TestOmitemptyAndUnknownFields(t *testing.T) {
	data, err := Marshal(sampleStatus{State: "stopped"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var generic map[string]any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	if _, present := generic["detail"]; present {
		t.Error("empty omitempty field was encoded")
	}

	// A client that knows only the action field still decodes.
	var request sampleRequest
	if err := Unmarshal(data, &request); err != nil {
		t.Fatalf("Unmarshal with unknown fields: %v", err)
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	type envelope struct {
		OK   bool       `cbor:"ok"`
		Data RawMessage `cbor:"data,omitempty"`
	}
	payload, err := Marshal(sampleStatus{State: "running", Stored: 7})
	if err != nil {
		t.Fatalf("Marshal payload: %v", err)
	}
	data, err := Marshal(envelope{OK: true, Data: payload})
	if err != nil {
		t.Fatalf("Marshal envelope: %v", err)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	var status sampleStatus
	if err := Unmarshal(decoded.Data, &status); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if status.State != "running" || status.Stored != 7 {
		t.Errorf("status = %+v", status)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var request sampleRequest
	if err := Unmarshal([]byte{0xff, 0xfe}, &request); err == nil {
		t.Fatal("expected error for invalid CBOR")
	}
}
