package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/dukapos/dukapos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Customer, error)
	FindByName(ctx context.Context, shopID int64, name string) (Customer, error)
	Insert(ctx context.Context, c Customer) (int64, error)
	List(ctx context.Context, shopID int64, search string) ([]Customer, error)
}

// Service handles customer operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a customer.
func (s *Service) Create(ctx context.Context, input CreateInput) (Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Customer{}, ErrNameRequired
	}
	c := Customer{ShopID: input.ShopID, Name: name, Phone: strings.TrimSpace(input.Phone), Notes: input.Notes}
	id, err := s.repo.Insert(ctx, c)
	if err != nil {
		return Customer{}, err
	}
	c.ID = id
	return c, nil
}

// Get fetches one customer.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers for a shop.
func (s *Service) List(ctx context.Context, shopID int64, search string) ([]Customer, error) {
	return s.repo.List(ctx, shopID, search)
}

// ResolveOrCreate returns the existing customer with the given name or
// creates one. Credit sales always pass through here so a free-text name on
// the sale form still lands on a stable customer id.
func (s *Service) ResolveOrCreate(ctx context.Context, shopID int64, name, phone string) (Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Customer{}, ErrNameRequired
	}
	existing, err := s.repo.FindByName(ctx, shopID, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Customer{}, err
	}
	return s.Create(ctx, CreateInput{ShopID: shopID, Name: name, Phone: phone})
}
