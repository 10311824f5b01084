package memstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

// Seed is the fixture format used to populate the in-memory directory for
// local runs without Postgres.
type Seed struct {
	Parties  []SeedParty   `json:"parties" validate:"dive"`
	Listings []SeedListing `json:"listings" validate:"dive"`
	Rfqs     []SeedRfq     `json:"rfqs" validate:"dive"`
}

type SeedParty struct {
	ID          string `json:"id" validate:"required,uuid"`
	Role        string `json:"role" validate:"required,oneof=ADMIN SELLER BUYER"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" validate:"omitempty,email"`
	Active      *bool  `json:"active"`
}

type SeedListing struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	SellerID  string `json:"seller_id" validate:"required,uuid"`
	Title     string `json:"title"`
}

type SeedRfq struct {
	RfqID     string `json:"rfq_id" validate:"required,uuid"`
	ProductID string `json:"product_id" validate:"omitempty,uuid"`
	SellerID  string `json:"seller_id" validate:"required,uuid"`
	BuyerID   string `json:"buyer_id" validate:"required,uuid"`
	Title     string `json:"title"`
}

var seedValidator = validator.New(validator.WithRequiredStructEnabled())

// LoadSeedFile reads a JSON fixture from path and applies it with LoadSeed.
func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}

// LoadSeed validates the whole fixture before registering anything, so a bad
// file leaves the store untouched.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	if err := seedValidator.Struct(seed); err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}
	if len(seed.Parties) == 0 {
		return errors.New("invalid seed: no parties")
	}

	for _, p := range seed.Parties {
		active := p.Active == nil || *p.Active
		s.AddParty(domain.PartyProfile{
			ID:          p.ID,
			Role:        domain.PartyRole(p.Role),
			DisplayName: p.DisplayName,
			Email:       p.Email,
			Active:      active,
		})
	}
	for _, l := range seed.Listings {
		s.AddListing(domain.ListingContext{ProductID: l.ProductID, SellerID: l.SellerID, Title: l.Title})
	}
	for _, r := range seed.Rfqs {
		s.AddRfq(domain.RfqContext{
			RfqID:     r.RfqID,
			ProductID: r.ProductID,
			SellerID:  r.SellerID,
			BuyerID:   r.BuyerID,
			Title:     r.Title,
		})
	}
	return nil
}
