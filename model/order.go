package model

import "time"

// Order is the receipt of a completed (simulated) checkout.
type Order struct {
	Reference   string     `json:"reference"`
	Account     string     `json:"account"`
	Items       []CartLine `json:"items"`
	TotalCrypto string     `json:"total_eth"`
	TotalFiat   string     `json:"total_usd"`
	CompletedAt time.Time  `json:"completed_at"`
}
