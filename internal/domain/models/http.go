package models

// SessionsRequest filters the read-only sessions listing.
type SessionsRequest struct {
	Market    string `query:"market" validate:"required,alphanum"`
	SessionNo int64  `query:"session_no" validate:"omitempty,gt=0"`
	Limit     int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// MarketsRequest lists markets, optionally only the controlled ones.
type MarketsRequest struct {
	ControlOnly bool `query:"control_only" default:"false"`
}
