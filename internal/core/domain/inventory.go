package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownItem = errors.New("unknown item")

// Item is a kind of snack stocked by the machine. The set is closed.
type Item uint64

const (
	Chocolate Item = iota
	Water
	Chips
)

// itemOrder is the canonical iteration order used for reporting.
var itemOrder = [...]Item{Chocolate, Water, Chips}

var itemNames = map[Item]string{
	Chocolate: "chocolate",
	Water:     "water",
	Chips:     "chips",
}

// Items returns every item kind in canonical order.
func Items() []Item {
	out := make([]Item, len(itemOrder))
	copy(out, itemOrder[:])
	return out
}

func (i Item) Valid() bool {
	_, ok := itemNames[i]
	return ok
}

func (i Item) String() string {
	if name, ok := itemNames[i]; ok {
		return name
	}
	return fmt.Sprintf("item(%d)", uint64(i))
}

// ParseItem maps a textual item name to its kind, ignoring case.
func ParseItem(s string) (Item, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, item := range itemOrder {
		if itemNames[item] == name {
			return item, nil
		}
	}
	return 0, &UnknownItemError{Name: s}
}

func (i Item) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, &UnknownItemError{Name: i.String()}
	}
	return []byte(i.String()), nil
}

func (i *Item) UnmarshalText(text []byte) error {
	item, err := ParseItem(string(text))
	if err != nil {
		return err
	}
	*i = item
	return nil
}

type UnknownItemError struct {
	Name string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown item %q", e.Name)
}

func (e *UnknownItemError) Unwrap() error { return ErrUnknownItem }

// ItemAmount pairs an item kind with a count.
type ItemAmount struct {
	Item   Item   `json:"item"`
	Amount uint64 `json:"amount"`
}

// ParseItemAmount parses the "chocolate=3" form used by config and the CLI.
func ParseItemAmount(s string) (ItemAmount, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return ItemAmount{}, fmt.Errorf("invalid item amount %q: want item=amount", s)
	}
	item, err := ParseItem(name)
	if err != nil {
		return ItemAmount{}, err
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return ItemAmount{}, fmt.Errorf("invalid amount in %q: %w", s, err)
	}
	return ItemAmount{Item: item, Amount: amount}, nil
}
