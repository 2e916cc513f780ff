package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedMessage marks inbound payloads that fail schema validation.
// Consumers count and ack these; they are never retried.
var ErrMalformedMessage = errors.New("malformed price update")

var assetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidAssetID reports whether id is an acceptable asset identifier.
func ValidAssetID(id string) bool {
	return assetIDPattern.MatchString(id)
}

// PriceSample is a single validated observation for one asset.
// Immutable once constructed; ObservedAt is always UTC.
type PriceSample struct {
	AssetID    string
	Price      decimal.Decimal
	Volume     decimal.Decimal
	Source     string
	ObservedAt time.Time
}

// PriceUpdate is the wire form published on the price topic. Price and
// volume accept both string and numeric JSON encodings.
type PriceUpdate struct {
	AssetID    string          `json:"asset_id"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume,omitempty"`
	Source     string          `json:"source,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
}

// ParsePriceUpdate decodes and validates a raw payload into a PriceSample.
// All failures wrap ErrMalformedMessage.
func ParsePriceUpdate(payload []byte) (PriceSample, error) {
	var u PriceUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return PriceSample{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return u.Sample()
}

// Sample validates the update and converts it to a domain sample.
func (u PriceUpdate) Sample() (PriceSample, error) {
	if !ValidAssetID(u.AssetID) {
		return PriceSample{}, fmt.Errorf("%w: invalid asset_id %q", ErrMalformedMessage, u.AssetID)
	}
	if u.Price.Sign() <= 0 {
		return PriceSample{}, fmt.Errorf("%w: non-positive price for %s", ErrMalformedMessage, u.AssetID)
	}
	if u.Volume.Sign() < 0 {
		return PriceSample{}, fmt.Errorf("%w: negative volume for %s", ErrMalformedMessage, u.AssetID)
	}
	if u.ObservedAt.IsZero() {
		return PriceSample{}, fmt.Errorf("%w: missing observed_at for %s", ErrMalformedMessage, u.AssetID)
	}
	return PriceSample{
		AssetID:    u.AssetID,
		Price:      u.Price,
		Volume:     u.Volume,
		Source:     u.Source,
		ObservedAt: u.ObservedAt.UTC(),
	}, nil
}

// PriceFloat returns the price as float64 for indicator math.
func (s PriceSample) PriceFloat() float64 {
	f, _ := s.Price.Float64()
	return f
}

// Equal reports sample identity as used for ingest deduplication:
// same asset, same observation instant, same price.
func (s PriceSample) Equal(o PriceSample) bool {
	return s.AssetID == o.AssetID && s.ObservedAt.Equal(o.ObservedAt) && s.Price.Equal(o.Price)
}
