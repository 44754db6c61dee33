package dto

// PricePreviewResponse carries decimal amounts as strings to keep their precision
type PricePreviewResponse struct {
	KRWPrice string `json:"krwPrice"`
	Fee      string `json:"fee"`
	Currency string `json:"currency"`
	Price    string `json:"price"`
}
