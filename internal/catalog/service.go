package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateRequest struct {
	Kind         Kind
	Name         string
	DefaultUnits int
	DefaultPrice *decimal.Decimal
}

type UpdateRequest struct {
	Name         *string
	DefaultUnits *int
	DefaultPrice *decimal.Decimal
	IsActive     *bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Resource, error)

	// Lookup returns the active resource of the given kind, or ErrUnknownResource.
	Lookup(ctx context.Context, kind Kind, id string) (*Resource, error)
	ListActiveIDs(ctx context.Context, kind Kind) ([]string, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validateDefaults(units int, price *decimal.Decimal) error {
	if units < 0 {
		return ErrInvalidDefaultUnits
	}
	if price != nil && price.IsNegative() {
		return ErrInvalidDefaultPrice
	}
	return nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if !req.Kind.Valid() {
		return nil, ErrInvalidKind
	}
	if err := validateDefaults(req.DefaultUnits, req.DefaultPrice); err != nil {
		return nil, err
	}

	res := &Resource{
		Kind:         req.Kind,
		Name:         name,
		DefaultUnits: req.DefaultUnits,
		DefaultPrice: req.DefaultPrice,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Resource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, ErrInvalidKind
	}
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Resource, error) {
	res, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		res.Name = name
	}
	if req.DefaultUnits != nil {
		res.DefaultUnits = *req.DefaultUnits
	}
	if req.DefaultPrice != nil {
		res.DefaultPrice = req.DefaultPrice
	}
	if req.IsActive != nil {
		res.IsActive = *req.IsActive
	}
	if err := validateDefaults(res.DefaultUnits, res.DefaultPrice); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) Lookup(ctx context.Context, kind Kind, id string) (*Resource, error) {
	res, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnknownResource
		}
		return nil, err
	}
	if res.Kind != kind || !res.IsActive {
		return nil, ErrUnknownResource
	}
	return res, nil
}

func (s *service) ListActiveIDs(ctx context.Context, kind Kind) ([]string, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	return s.repo.ListActiveIDs(ctx, kind)
}
