package document

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Jurisdiction is a state code. The zero value means unset.
type Jurisdiction string

const (
	StateOH Jurisdiction = "OH"
	StateMD Jurisdiction = "MD"
	StateNJ Jurisdiction = "NJ"
	StateIL Jurisdiction = "IL"
	StateNY Jurisdiction = "NY"
	StateNV Jurisdiction = "NV"
	StateMA Jurisdiction = "MA"
)

// Jurisdictions lists every recognized state code.
var Jurisdictions = []Jurisdiction{StateOH, StateMD, StateNJ, StateIL, StateNY, StateNV, StateMA}

// OrderType is an order-type code. The zero value means unset.
type OrderType string

const (
	OrderRise    OrderType = "RISE"
	OrderRegular OrderType = "REGULAR"
	OrderGeneral OrderType = "GENERAL"
)

var OrderTypes = []OrderType{OrderRise, OrderRegular, OrderGeneral}

// Topic is a topic code. The set is open: extra codes come from the tagger's
// keyword table.
type Topic string

const (
	TopicPricing      Topic = "PRICING"
	TopicBatteries    Topic = "BATTERIES"
	TopicBatchSub     Topic = "BATCH_SUB"
	TopicDeliveryDate Topic = "DELIVERY_DATE"
	TopicOrderLimit   Topic = "ORDER_LIMIT"
)

// ContextState is the jurisdiction/order-type/topic in effect while scanning.
type ContextState struct {
	State   Jurisdiction `json:"state"`
	Section OrderType    `json:"section"`
	Topic   Topic        `json:"topic"`
}

// IsZero reports whether all three fields are unset.
func (c ContextState) IsZero() bool {
	return c.State == "" && c.Section == "" && c.Topic == ""
}

func (j Jurisdiction) MarshalJSON() ([]byte, error) { return marshalCode(string(j)) }
func (o OrderType) MarshalJSON() ([]byte, error)    { return marshalCode(string(o)) }
func (t Topic) MarshalJSON() ([]byte, error)        { return marshalCode(string(t)) }

func (j *Jurisdiction) UnmarshalJSON(b []byte) error {
	s, err := unmarshalCode(b)
	*j = Jurisdiction(s)
	return err
}

func (o *OrderType) UnmarshalJSON(b []byte) error {
	s, err := unmarshalCode(b)
	*o = OrderType(s)
	return err
}

func (t *Topic) UnmarshalJSON(b []byte) error {
	s, err := unmarshalCode(b)
	*t = Topic(s)
	return err
}

func (j Jurisdiction) EncodeMsgpack(enc *msgpack.Encoder) error { return encodeCode(enc, string(j)) }
func (o OrderType) EncodeMsgpack(enc *msgpack.Encoder) error    { return encodeCode(enc, string(o)) }
func (t Topic) EncodeMsgpack(enc *msgpack.Encoder) error        { return encodeCode(enc, string(t)) }

func (j *Jurisdiction) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	*j = Jurisdiction(s)
	return err
}

func (o *OrderType) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	*o = OrderType(s)
	return err
}

func (t *Topic) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	*t = Topic(s)
	return err
}

// encodeCode writes unset codes as nil so msgpack output matches JSON.
func encodeCode(enc *msgpack.Encoder, s string) error {
	if s == "" {
		return enc.EncodeNil()
	}
	return enc.EncodeString(s)
}

// Unset codes are written as null.
func marshalCode(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

func unmarshalCode(b []byte) (string, error) {
	if string(b) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", fmt.Errorf("decode code: %w", err)
	}
	return s, nil
}

// Position describes where an image sits relative to the chunk text.
type Position string

const (
	PositionAfterSentence    Position = "after_sentence"
	PositionConsecutiveAfter Position = "consecutive_after"
	PositionMiddleParagraph  Position = "middle_paragraph"
	PositionBeforeChunk      Position = "before_chunk" // excluded, never serialized on an attachment
)
