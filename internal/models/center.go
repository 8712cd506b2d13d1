package models

import "time"

// BankDetails is what the payment provider needs to disburse a payout.
type BankDetails struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Center is a screening center that performs appointments and receives
// settlement payouts.
type Center struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	State     string      `json:"state"`
	LGA       string      `json:"lga"`
	Bank      BankDetails `json:"bank"`
	CreatedAt time.Time   `json:"created_at"`
}

// ScreeningType is a catalog entry; Cost is the subsidized price in
// kobo a center charges for one screening.
type ScreeningType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost int64  `json:"cost"`
}
