package models

import "github.com/shopspring/decimal"

// StockOverview describes a listed company as reported by the market data
// provider. Numeric fields stay in the provider's string form ("None", "-"
// and "" all appear in practice) and pass through to clients untouched.
type StockOverview struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Exchange    string `json:"exchange"`
	Description string `json:"description"`
	PERatio     string `json:"pe_ratio"`
	Week52High  string `json:"week52_high"`
	Week52Low   string `json:"week52_low"`
}

// PriceDetails is a live quote snapshot. CurrentPrice and PriceChange are
// decimal because buy/sell arithmetic consumes them; ChangePercentage keeps
// the provider's formatting (e.g. "+1.65%").
type PriceDetails struct {
	Symbol           string          `json:"symbol"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	PriceChange      decimal.Decimal `json:"price_change"`
	ChangePercentage string          `json:"change_percentage"`
}

// HistoricalBar is one day of price history. Values pass through verbatim
// from the provider, so "85.0" stays "85.0" rather than renormalising.
type HistoricalBar struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}
