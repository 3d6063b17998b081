package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItems_CanonicalOrder(t *testing.T) {
	assert.Equal(t, []Item{Chocolate, Water, Chips}, Items())

	// callers cannot reorder the enumeration
	items := Items()
	items[0] = Chips
	assert.Equal(t, Chocolate, Items()[0])
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		in   string
		want Item
	}{
		{"chocolate", Chocolate},
		{"Water", Water},
		{" CHIPS ", Chips},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItem(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseItem("candy")
	var ue *UnknownItemError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "candy", ue.Name)
	assert.True(t, errors.Is(err, ErrUnknownItem))
}

func TestItem_JSON(t *testing.T) {
	data, err := json.Marshal(ItemAmount{Item: Water, Amount: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":"water","amount":3}`, string(data))

	var ia ItemAmount
	require.NoError(t, json.Unmarshal([]byte(`{"item":"chips","amount":2}`), &ia))
	assert.Equal(t, ItemAmount{Item: Chips, Amount: 2}, ia)

	err = json.Unmarshal([]byte(`{"item":"soda","amount":2}`), &ia)
	assert.ErrorIs(t, err, ErrUnknownItem)

	_, err = json.Marshal(Item(42))
	assert.Error(t, err)
}

func TestParseItemAmount(t *testing.T) {
	ia, err := ParseItemAmount("chocolate=12")
	require.NoError(t, err)
	assert.Equal(t, ItemAmount{Item: Chocolate, Amount: 12}, ia)

	for _, bad := range []string{"chocolate", "chocolate=-1", "chocolate=x", "soda=1"} {
		_, err := ParseItemAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateIdentity(t *testing.T) {
	for _, ok := range []string{"owner", "user", "vend_01", "a-b"} {
		assert.NoError(t, ValidateIdentity(ok), ok)
	}
	for _, bad := range []string{"", "ab", "Owner", "own er", "ünï"} {
		err := ValidateIdentity(bad)
		assert.ErrorIs(t, err, ErrInvalidIdentity, bad)
	}
}

func TestResponse(t *testing.T) {
	resp := NewResponse(ActionRefill).AddEvent(Event{Type: EventItemRefilled, Item: Water, Amount: 2, Total: 5})

	assert.Equal(t, ActionRefill, resp.Action())
	_, ok := resp.Attribute(AttrOwner)
	assert.False(t, ok)
	assert.Equal(t, []Attribute{
		{Key: AttrItem, Value: "water"},
		{Key: AttrAmount, Value: "2"},
		{Key: AttrTotalAmount, Value: "5"},
	}, resp.Events[0].Attributes())

	retrieved := Event{Type: EventItemRetrieved, Item: Chips, Total: 0}
	assert.Equal(t, []Attribute{
		{Key: AttrItem, Value: "chips"},
		{Key: AttrTotalAmount, Value: "0"},
	}, retrieved.Attributes())
}
