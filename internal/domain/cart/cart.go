// Package cart holds the shopping cart entities and operations.
package cart

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrLineNotFound is returned when updating or removing an item that is
	// not in the cart.
	ErrLineNotFound = errors.New("item not found in cart")
	// ErrInvalidQuantity is returned for negative quantities.
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// Cart is a user's single active cart. It is created lazily on first access
// and reused across checkouts; only its lines are cleared.
type Cart struct {
	ID     int64
	UserID int64
	Lines  []Line
}

// Line is one (item, quantity) entry in a cart. Quantity is always >= 1;
// setting a quantity of zero removes the line instead.
type Line struct {
	ID       int64
	CartID   int64
	ItemID   int64
	Quantity int
}

// Repository provides cart persistence. GetOrCreate returns the user's cart
// with its lines, creating an empty cart on first access.
type Repository interface {
	GetOrCreate(ctx context.Context, userID int64) (*Cart, error)
	UpsertLine(ctx context.Context, cartID, itemID int64, delta int) error
	SetLineQuantity(ctx context.Context, cartID, itemID int64, quantity int) (bool, error)
	RemoveLine(ctx context.Context, cartID, itemID int64) error
	Clear(ctx context.Context, cartID int64) error
}

// Service exposes the cart operations used by the HTTP layer and checkout.
type Service struct {
	repo Repository
}

// NewService creates a cart Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user's cart, creating it on first access.
func (s *Service) Get(ctx context.Context, userID int64) (*Cart, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds quantity of an item to the cart, merging with an existing
// line for the same item. A zero quantity defaults to one.
func (s *Service) AddItem(ctx context.Context, userID, itemID int64, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		quantity = 1
	}
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	return s.repo.UpsertLine(ctx, c.ID, itemID, quantity)
}

// UpdateQuantity sets an item's quantity. Zero deletes the line rather than
// persisting a zero quantity.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	if quantity == 0 {
		return s.repo.RemoveLine(ctx, c.ID, itemID)
	}
	found, err := s.repo.SetLineQuantity(ctx, c.ID, itemID, quantity)
	if err != nil {
		return err
	}
	if !found {
		return ErrLineNotFound
	}
	return nil
}

// RemoveItem deletes an item's line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) error {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}
	return s.repo.RemoveLine(ctx, c.ID, itemID)
}
