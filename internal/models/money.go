package models

import "github.com/shopspring/decimal"

func init() {
	// Денежные суммы отдаются клиентам JSON-числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true
}
