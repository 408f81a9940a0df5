package catalogfs

import "github.com/bobmcallan/ticker/internal/models"

// USSeed is the static US catalog served until a US catalog file is written.
func USSeed() []models.CatalogEntry {
	return []models.CatalogEntry{
		{Code: "AAPL", Name: "Apple Inc."},
		{Code: "MSFT", Name: "Microsoft Corporation"},
		{Code: "GOOGL", Name: "Alphabet Inc."},
		{Code: "AMZN", Name: "Amazon.com Inc."},
		{Code: "NVDA", Name: "NVIDIA Corporation"},
		{Code: "META", Name: "Meta Platforms Inc."},
		{Code: "TSLA", Name: "Tesla Inc."},
		{Code: "BRK.B", Name: "Berkshire Hathaway Inc."},
		{Code: "JPM", Name: "JPMorgan Chase & Co."},
		{Code: "V", Name: "Visa Inc."},
		{Code: "WMT", Name: "Walmart Inc."},
		{Code: "DIS", Name: "The Walt Disney Company"},
		{Code: "NFLX", Name: "Netflix Inc."},
		{Code: "BAC", Name: "Bank of America Corporation"},
		{Code: "KO", Name: "The Coca-Cola Company"},
		{Code: "PEP", Name: "PepsiCo Inc."},
		{Code: "COST", Name: "Costco Wholesale Corporation"},
		{Code: "INTC", Name: "Intel Corporation"},
		{Code: "AMD", Name: "Advanced Micro Devices Inc."},
		{Code: "PYPL", Name: "PayPal Holdings Inc."},
	}
}
