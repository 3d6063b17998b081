package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rl1809/vending-ledger/internal/core/domain"
	"github.com/rl1809/vending-ledger/internal/port"
)

const (
	ownerKey       = "owner"
	itemsKeyPrefix = "snacks:"
)

// InitMsg carries the owner and the initial stock of a new ledger.
type InitMsg struct {
	Owner         string              `json:"owner"`
	InitialAmount []domain.ItemAmount `json:"initial_amount"`
}

// Ledger keeps per-item counters and the owner in a LedgerStore. It holds no
// locks of its own; callers serialize state-changing calls.
type Ledger struct {
	store    port.LedgerStore
	validate func(string) error
}

type LedgerOption func(*Ledger)

// WithIdentityValidator replaces domain.ValidateIdentity.
func WithIdentityValidator(fn func(string) error) LedgerOption {
	return func(l *Ledger) { l.validate = fn }
}

func NewLedger(store port.LedgerStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{store: store, validate: domain.ValidateIdentity}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func itemKey(item domain.Item) string {
	return itemsKeyPrefix + strconv.FormatUint(uint64(item), 10)
}

// Initialize claims the owner key and then stores the initial counters, so a
// caller that loses the claim writes nothing. Duplicate items overwrite
// earlier entries. An empty owner value marks a released claim.
func (l *Ledger) Initialize(ctx context.Context, msg InitMsg) (domain.Response, error) {
	if err := l.validate(msg.Owner); err != nil {
		return domain.Response{}, err
	}
	for _, ia := range msg.InitialAmount {
		if !ia.Item.Valid() {
			return domain.Response{}, &domain.UnknownItemError{Name: ia.Item.String()}
		}
	}

	_, err := l.store.Update(ctx, ownerKey, func(current []byte, ok bool) ([]byte, error) {
		if ok && len(current) > 0 {
			return nil, ErrAlreadyInitialized
		}
		return []byte(msg.Owner), nil
	})
	if err != nil {
		return domain.Response{}, fmt.Errorf("save owner: %w", err)
	}

	for _, ia := range msg.InitialAmount {
		if err := l.store.Put(ctx, itemKey(ia.Item), encodeCount(ia.Amount)); err != nil {
			if rerr := l.releaseOwner(ctx, msg.Owner); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return domain.Response{}, fmt.Errorf("save %s: %w", ia.Item, err)
		}
	}

	return domain.NewResponse(domain.ActionInstantiate).
		AddAttribute(domain.AttrOwner, msg.Owner), nil
}

func (l *Ledger) releaseOwner(ctx context.Context, owner string) error {
	_, err := l.store.Update(ctx, ownerKey, func(current []byte, ok bool) ([]byte, error) {
		if !ok || string(current) != owner {
			return current, nil
		}
		return []byte{}, nil
	})
	if err != nil {
		return fmt.Errorf("release owner: %w", err)
	}
	return nil
}

func (l *Ledger) Initialized(ctx context.Context) (bool, error) {
	v, ok, err := l.store.Get(ctx, ownerKey)
	if err != nil {
		return false, fmt.Errorf("load owner: %w", err)
	}
	return ok && len(v) > 0, nil
}

func (l *Ledger) Owner(ctx context.Context) (string, error) {
	v, ok, err := l.store.Get(ctx, ownerKey)
	if err != nil {
		return "", fmt.Errorf("load owner: %w", err)
	}
	if !ok || len(v) == 0 {
		return "", ErrNotInitialized
	}
	return string(v), nil
}

// Withdraw reduces the count of item by one. Anyone may withdraw.
func (l *Ledger) Withdraw(ctx context.Context, item domain.Item) (domain.Response, error) {
	if !item.Valid() {
		return domain.Response{}, &domain.UnknownItemError{Name: item.String()}
	}

	var total uint64
	_, err := l.store.Update(ctx, itemKey(item), func(current []byte, ok bool) ([]byte, error) {
		count, err := decodeCount(current, ok)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, &OutOfStockError{Item: item}
		}
		total = count - 1
		return encodeCount(total), nil
	})
	if err != nil {
		return domain.Response{}, err
	}

	return domain.NewResponse(domain.ActionGetItem).AddEvent(domain.Event{
		Type:  domain.EventItemRetrieved,
		Item:  item,
		Total: total,
	}), nil
}

// Restock adds amount to item. Only the owner may restock.
func (l *Ledger) Restock(ctx context.Context, sender string, item domain.Item, amount uint64) (domain.Response, error) {
	if !item.Valid() {
		return domain.Response{}, &domain.UnknownItemError{Name: item.String()}
	}

	owner, err := l.Owner(ctx)
	if err != nil {
		return domain.Response{}, err
	}
	if owner != sender {
		return domain.Response{}, &UnauthorizedError{Sender: sender}
	}

	var total uint64
	_, err = l.store.Update(ctx, itemKey(item), func(current []byte, ok bool) ([]byte, error) {
		count, err := decodeCount(current, ok)
		if err != nil {
			return nil, err
		}
		if amount > math.MaxUint64-count {
			return nil, &OverflowError{Item: item, Amount: amount}
		}
		total = count + amount
		return encodeCount(total), nil
	})
	if err != nil {
		return domain.Response{}, err
	}

	return domain.NewResponse(domain.ActionRefill).AddEvent(domain.Event{
		Type:   domain.EventItemRefilled,
		Item:   item,
		Amount: amount,
		Total:  total,
	}), nil
}

// Items returns the count of every item in canonical order; missing
// counters read as zero.
func (l *Ledger) Items(ctx context.Context) ([]domain.ItemAmount, error) {
	items := domain.Items()
	out := make([]domain.ItemAmount, 0, len(items))
	for _, item := range items {
		v, ok, err := l.store.Get(ctx, itemKey(item))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", item, err)
		}
		count, err := decodeCount(v, ok)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ItemAmount{Item: item, Amount: count})
	}
	return out, nil
}

func encodeCount(n uint64) []byte {
	return strconv.AppendUint(nil, n, 10)
}

func decodeCount(v []byte, ok bool) (uint64, error) {
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCorruptValue, v)
	}
	return n, nil
}
