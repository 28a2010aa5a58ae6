package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"` // minor units
	Currency  string `json:"currency"`
	Active    bool   `json:"active"`
}

// Choice is one selectable value of a customization option. A choice can
// carry a fixed modifier, a percentage of the base price, or both.
type Choice struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Modifier int64           `json:"modifier"` // minor units, signed
	Percent  decimal.Decimal `json:"percent"`  // fraction of base price, signed
}

type Option struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Choices []Choice `json:"choices"`
}
