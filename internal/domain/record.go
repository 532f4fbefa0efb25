package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Kind identifies the business event a record describes.
type Kind string

// Record kinds.
const (
	KindRevenue       Kind = "Revenue"
	KindLead          Kind = "Lead"
	KindMessage       Kind = "Message"
	KindCampaignSpend Kind = "CampaignSpend"
	KindInvoice       Kind = "Invoice"
)

// Dimension names accepted on records and filters.
const (
	DimChannel    = "channel"
	DimRegion     = "region"
	DimCampaignID = "campaignId"
	DimPlatform   = "platform"
)

// Payload field names.
const (
	FieldAmount     = "amount"
	FieldCount      = "count"
	FieldConverted  = "converted"
	FieldSent       = "sent"
	FieldDelivered  = "delivered"
	FieldCost       = "cost"
	FieldBudget     = "budget"
	FieldReach      = "reach"
	FieldEngagement = "engagement"
	FieldPaid       = "paid"
)

// requiredFields lists payload fields that must be present for each kind.
var requiredFields = map[Kind][]string{
	KindRevenue:       {FieldAmount},
	KindLead:          {FieldCount},
	KindMessage:       {FieldSent, FieldDelivered},
	KindCampaignSpend: {FieldCost},
	KindInvoice:       {FieldAmount},
}

var knownDimensions = map[string]struct{}{
	DimChannel:    {},
	DimRegion:     {},
	DimCampaignID: {},
	DimPlatform:   {},
}

// Kinds returns all recognized record kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindRevenue, KindLead, KindMessage, KindCampaignSpend, KindInvoice}
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	_, ok := requiredFields[k]
	return ok
}

// IsDimension reports whether name is a recognized dimension.
func IsDimension(name string) bool {
	_, ok := knownDimensions[name]
	return ok
}

// Dimensions returns the recognized dimension names, sorted.
func Dimensions() []string {
	out := make([]string, 0, len(knownDimensions))
	for d := range knownDimensions {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Payload holds the numeric fields of a record.
// Boolean JSON values decode to 1 (true) or 0 (false).
type Payload map[string]float64

// UnmarshalJSON accepts numbers and booleans.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Payload, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case float64:
			out[k] = tv
		case bool:
			if tv {
				out[k] = 1
			} else {
				out[k] = 0
			}
		default:
			return fmt.Errorf("payload field %q: expected number or boolean, got %T", k, v)
		}
	}
	*p = out
	return nil
}

// Record is an immutable business event.
// Dimensions and Payload must not be modified after the record is appended.
type Record struct {
	ID         string            `json:"id,omitempty"`
	Kind       Kind              `json:"kind"`
	Timestamp  time.Time         `json:"timestamp"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Payload    Payload           `json:"payload"`
	Seq        uint64            `json:"-"` // store-assigned insertion order
}

// Validate checks kind, timestamp, dimensions and required payload fields.
// Returns *InvalidRecordError on failure.
func (r *Record) Validate() error {
	if r == nil {
		return &InvalidRecordError{Reason: "record is nil"}
	}
	if !r.Kind.Valid() {
		return &InvalidRecordError{Field: "kind", Reason: fmt.Sprintf("unrecognized kind %q (expected one of %v)", r.Kind, Kinds())}
	}
	if r.Timestamp.IsZero() {
		return &InvalidRecordError{Field: "timestamp", Reason: "missing timestamp"}
	}
	for name, value := range r.Dimensions {
		if !IsDimension(name) {
			return &InvalidRecordError{Field: "dimensions." + name, Reason: fmt.Sprintf("unknown dimension (expected one of %v)", Dimensions())}
		}
		if value == "" {
			return &InvalidRecordError{Field: "dimensions." + name, Reason: "empty value"}
		}
	}
	for _, field := range requiredFields[r.Kind] {
		v, ok := r.Payload[field]
		if !ok {
			return &InvalidRecordError{Field: "payload." + field, Reason: "required field missing"}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidRecordError{Field: "payload." + field, Reason: "value is not finite"}
		}
	}
	for field, v := range r.Payload {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidRecordError{Field: "payload." + field, Reason: "value is not finite"}
		}
	}
	return nil
}

// Clone returns a deep copy so the stored record cannot be reached through
// the caller's maps.
func (r *Record) Clone() *Record {
	c := *r
	c.Timestamp = r.Timestamp.UTC()
	if r.Dimensions != nil {
		c.Dimensions = make(map[string]string, len(r.Dimensions))
		for k, v := range r.Dimensions {
			c.Dimensions[k] = v
		}
	}
	c.Payload = make(Payload, len(r.Payload))
	for k, v := range r.Payload {
		c.Payload[k] = v
	}
	return &c
}

// Field returns the payload value for name, or 0 if absent.
func (r *Record) Field(name string) float64 {
	return r.Payload[name]
}
