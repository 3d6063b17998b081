package domain

import (
	"strconv"
	"time"
)

// Action tags every state-changing call for audit tooling.
type Action string

const (
	ActionInstantiate Action = "instantiate"
	ActionGetItem     Action = "get_item"
	ActionRefill      Action = "refill"
)

type EventType string

const (
	EventItemRetrieved EventType = "item_retrieved"
	EventItemRefilled  EventType = "item_refilled"
)

const (
	AttrAction      = "action"
	AttrOwner       = "owner"
	AttrItem        = "item"
	AttrAmount      = "amount"
	AttrTotalAmount = "total_amount"
)

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event describes a counter change. Amount is zero for retrievals.
type Event struct {
	Type   EventType `json:"type"`
	Item   Item      `json:"item"`
	Amount uint64    `json:"amount,omitempty"`
	Total  uint64    `json:"total_amount"`
}

// Attributes renders the event as ordered key/value pairs.
func (e Event) Attributes() []Attribute {
	attrs := []Attribute{{Key: AttrItem, Value: e.Item.String()}}
	if e.Type == EventItemRefilled {
		attrs = append(attrs, Attribute{Key: AttrAmount, Value: strconv.FormatUint(e.Amount, 10)})
	}
	return append(attrs, Attribute{Key: AttrTotalAmount, Value: strconv.FormatUint(e.Total, 10)})
}

// Response is the result of a successful state-changing call.
type Response struct {
	Attributes []Attribute `json:"attributes"`
	Events     []Event     `json:"events,omitempty"`
}

func NewResponse(action Action) Response {
	return Response{Attributes: []Attribute{{Key: AttrAction, Value: string(action)}}}
}

func (r Response) AddAttribute(key, value string) Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r Response) AddEvent(e Event) Response {
	r.Events = append(r.Events, e)
	return r
}

// Attribute returns the first value stored under key.
func (r Response) Attribute(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

func (r Response) Action() Action {
	v, _ := r.Attribute(AttrAction)
	return Action(v)
}

// Record is the audit entry published for every committed call.
type Record struct {
	ID         string      `json:"id"`
	Action     Action      `json:"action"`
	Sender     string      `json:"sender"`
	Attributes []Attribute `json:"attributes"`
	Events     []Event     `json:"events,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
