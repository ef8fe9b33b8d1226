package models

// Requests for the front-door HTTP endpoints. Defined in domain for
// consistency and reuse.

// HuntRequest triggers one pipeline run. All fields are optional overrides.
type HuntRequest struct {
	Ticker     string   `query:"ticker" json:"ticker" validate:"omitempty,alphanum|containsany=-.,max=8"`
	Exclude    []string `json:"exclude" validate:"omitempty,max=50,dive,max=8"`
	FailClosed *bool    `json:"fail_closed"`
}

// RunsRequest lists recent run records.
type RunsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}
