package models

// Requests for the indicator read endpoints. Defined in domain for consistency and reuse.
// Asset id shape is checked with ValidAssetID in the handler, matching the
// consumer-side rule, so both surfaces reject the same identifiers.

type IndicatorRequest struct {
	AssetID string `param:"asset_id" json:"asset_id" validate:"required,max=64"`
}

type CorrelationRequest struct {
	Base  string `query:"base" json:"base" validate:"required,max=64"`
	Quote string `query:"quote" json:"quote" validate:"required,max=64"`
}

// CorrelationResult is the read-side answer for one asset pair.
type CorrelationResult struct {
	Base        string  `json:"base"`
	Quote       string  `json:"quote"`
	Correlation float64 `json:"correlation"`
}
