package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

var ts = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{
			name:   "valid revenue",
			record: Record{Kind: KindRevenue, Timestamp: ts, Payload: Payload{FieldAmount: 100}},
		},
		{
			name:   "negative amount allowed",
			record: Record{Kind: KindRevenue, Timestamp: ts, Payload: Payload{FieldAmount: -25}},
		},
		{
			name:    "unknown kind",
			record:  Record{Kind: "Refund", Timestamp: ts, Payload: Payload{FieldAmount: 1}},
			wantErr: true,
		},
		{
			name:    "missing required field",
			record:  Record{Kind: KindMessage, Timestamp: ts, Payload: Payload{FieldSent: 1}},
			wantErr: true,
		},
		{
			name:    "non-finite field",
			record:  Record{Kind: KindRevenue, Timestamp: ts, Payload: Payload{FieldAmount: math.NaN()}},
			wantErr: true,
		},
		{
			name:    "zero timestamp",
			record:  Record{Kind: KindRevenue, Payload: Payload{FieldAmount: 1}},
			wantErr: true,
		},
		{
			name: "unknown dimension",
			record: Record{Kind: KindRevenue, Timestamp: ts, Payload: Payload{FieldAmount: 1},
				Dimensions: map[string]string{"country": "SA"}},
			wantErr: true,
		},
		{
			name: "empty dimension value",
			record: Record{Kind: KindRevenue, Timestamp: ts, Payload: Payload{FieldAmount: 1},
				Dimensions: map[string]string{DimRegion: ""}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Fatalf("Expected ErrInvalidRecord, got %v", err)
				}
				var ire *InvalidRecordError
				if !errors.As(err, &ire) {
					t.Fatalf("Expected *InvalidRecordError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
		})
	}
}

func TestPayloadUnmarshalBool(t *testing.T) {
	var r Record
	data := `{"kind":"Message","timestamp":"2024-03-01T00:00:00Z","payload":{"sent":1,"delivered":true}}`
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.Payload[FieldDelivered] != 1 {
		t.Errorf("Expected delivered=1, got %v", r.Payload[FieldDelivered])
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}

	if err := json.Unmarshal([]byte(`{"payload":{"sent":"x"}}`), &r); err == nil {
		t.Error("Expected error for string payload value")
	}
}

func TestRecordCloneIsolated(t *testing.T) {
	r := &Record{Kind: KindRevenue, Timestamp: ts, Payload: Payload{FieldAmount: 1},
		Dimensions: map[string]string{DimRegion: "Riyadh"}}
	c := r.Clone()
	r.Dimensions[DimRegion] = "Jeddah"
	r.Payload[FieldAmount] = 2
	if c.Dimensions[DimRegion] != "Riyadh" || c.Payload[FieldAmount] != 1 {
		t.Errorf("Clone shares state with original: %+v", c)
	}
}

func TestRecordValidateListsKinds(t *testing.T) {
	err := (&Record{Kind: "Refund", Timestamp: ts}).Validate()
	if err == nil || !strings.Contains(err.Error(), string(KindCampaignSpend)) {
		t.Errorf("Expected known kinds in error, got %v", err)
	}
}

func TestRecordSeqNotDecoded(t *testing.T) {
	var r Record
	data := `{"id":"r1","kind":"Revenue","timestamp":"2024-03-01T00:00:00Z","payload":{"amount":1},"seq":99}`
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.Seq != 0 {
		t.Errorf("Expected client seq to be ignored, got %d", r.Seq)
	}

	r.Seq = 7
	out, err := json.Marshal(&r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(out), "seq") {
		t.Errorf("Expected seq to stay internal, got %s", out)
	}
}
