package market

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// FallbackBasePrice is used for symbols the catalog does not list.
	FallbackBasePrice = 100.0
	// FallbackColor is used for symbols without a display color.
	FallbackColor = "#666666"
)

// Listing is one catalog entry.
type Listing struct {
	Symbol    Symbol  `yaml:"symbol"`
	Name      string  `yaml:"name"`
	BasePrice float64 `yaml:"base_price"`
	Color     string  `yaml:"color"`
}

// Catalog provides base prices and display colors.
type Catalog interface {
	BasePrice(s Symbol) float64
	Color(s Symbol) string
	Listings() []Listing
}

// StaticCatalog is an in-memory Catalog.
type StaticCatalog struct {
	bySymbol map[Symbol]Listing
}

// NewStaticCatalog builds a catalog. Symbols are upper-cased.
func NewStaticCatalog(listings []Listing) *StaticCatalog {
	c := &StaticCatalog{bySymbol: make(map[Symbol]Listing, len(listings))}
	for _, l := range listings {
		l.Symbol = Symbol(strings.ToUpper(string(l.Symbol)))
		c.bySymbol[l.Symbol] = l
	}
	return c
}

// DefaultCatalog returns the built-in listings.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog([]Listing{
		{Symbol: "AAPL", Name: "Apple Inc.", BasePrice: 175.50, Color: "#A3AAAE"},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", BasePrice: 142.30, Color: "#4285F4"},
		{Symbol: "MSFT", Name: "Microsoft Corporation", BasePrice: 378.85, Color: "#00A4EF"},
		{Symbol: "AMZN", Name: "Amazon.com Inc.", BasePrice: 155.20, Color: "#FF9900"},
		{Symbol: "TSLA", Name: "Tesla Inc.", BasePrice: 248.75, Color: "#E31937"},
		{Symbol: "META", Name: "Meta Platforms Inc.", BasePrice: 485.60, Color: "#0668E1"},
		{Symbol: "NVDA", Name: "NVIDIA Corporation", BasePrice: 875.25, Color: "#76B900"},
		{Symbol: "NFLX", Name: "Netflix Inc.", BasePrice: 485.30, Color: "#E50914"},
		{Symbol: "AMD", Name: "Advanced Micro Devices", BasePrice: 135.80, Color: "#ED1C24"},
		{Symbol: "CRM", Name: "Salesforce Inc.", BasePrice: 285.40, Color: "#00A1E0"},
		{Symbol: "ADBE", Name: "Adobe Inc.", BasePrice: 585.90, Color: "#FA0F00"},
		{Symbol: "PYPL", Name: "PayPal Holdings Inc.", BasePrice: 65.45, Color: "#003087"},
		{Symbol: "UBER", Name: "Uber Technologies Inc.", BasePrice: 72.15, Color: "#FFFFFF"},
		{Symbol: "SPOT", Name: "Spotify Technology S.A.", BasePrice: 285.75, Color: "#1DB954"},
		{Symbol: "SQ", Name: "Block Inc.", BasePrice: 85.30, Color: "#3E4348"},
	})
}

// LoadCatalog reads listings from a YAML file of the form
//
//	stocks:
//	  - symbol: AAPL
//	    base_price: 175.5
//	    color: "#A3AAAE"
func LoadCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc struct {
		Stocks []Listing `yaml:"stocks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, l := range doc.Stocks {
		if l.Symbol == "" {
			return nil, fmt.Errorf("%w: catalog entry %d has no symbol", ErrInvalidInput, i)
		}
		if l.BasePrice < 0 {
			return nil, fmt.Errorf("%w: catalog entry %s has negative base price", ErrInvalidInput, l.Symbol)
		}
	}
	return NewStaticCatalog(doc.Stocks), nil
}

// BasePrice returns the listed base price or FallbackBasePrice.
func (c *StaticCatalog) BasePrice(s Symbol) float64 {
	if l, ok := c.bySymbol[s]; ok && l.BasePrice > 0 {
		return l.BasePrice
	}
	return FallbackBasePrice
}

// Color returns the listed color or FallbackColor.
func (c *StaticCatalog) Color(s Symbol) string {
	if l, ok := c.bySymbol[s]; ok && l.Color != "" {
		return l.Color
	}
	return FallbackColor
}

// Listings returns all entries sorted by symbol.
func (c *StaticCatalog) Listings() []Listing {
	out := make([]Listing, 0, len(c.bySymbol))
	for _, l := range c.bySymbol {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
