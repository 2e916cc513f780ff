package repository

// Family identifies an indicator family in cache keys and metrics labels.
type Family string

const (
	FamilySMA         Family = "sma"
	FamilyEMA         Family = "ema"
	FamilyVolatility  Family = "volatility"
	FamilyRSI         Family = "rsi"
	FamilyMACD        Family = "macd"
	FamilyCorrelation Family = "correlation"
	FamilySnapshot    Family = "snapshot"
)

// IsValidFamily returns true if f is a supported indicator family.
func IsValidFamily(f Family) bool {
	switch f {
	case FamilySMA, FamilyEMA, FamilyVolatility, FamilyRSI, FamilyMACD, FamilyCorrelation, FamilySnapshot:
		return true
	default:
		return false
	}
}

// Families lists every family a snapshot publish may write.
func Families() []Family {
	return []Family{FamilySMA, FamilyEMA, FamilyVolatility, FamilyRSI, FamilyMACD, FamilyCorrelation, FamilySnapshot}
}
