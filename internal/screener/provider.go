package screener

import "github.com/lunara-kim/market-auto-trader-sub000/pkg/types"

// StaticProvider serves the built-in fundamentals table and the named
// universes. Fundamentals are semi-static; refreshing the table is an
// offline concern, not part of the cycle.
type StaticProvider struct {
	fundamentals map[string]types.Fundamentals
	universes    map[string][]string
}

func NewStaticProvider() *StaticProvider {
	p := &StaticProvider{
		fundamentals: make(map[string]types.Fundamentals, len(builtinFundamentals)),
		universes:    make(map[string][]string, 2),
	}
	var kr, us []string
	for _, f := range builtinFundamentals {
		if types.IsDomestic(f.Symbol) {
			kr = append(kr, f.Symbol)
		} else {
			f.Exchange = types.ExchangeNASD
			if nyseListed[f.Symbol] {
				f.Exchange = types.ExchangeNYSE
			}
			us = append(us, f.Symbol)
		}
		p.fundamentals[f.Symbol] = f
	}
	p.universes["kospi30"] = kr
	p.universes["us30"] = us
	return p
}

func (p *StaticProvider) Fundamentals(symbol string) (types.Fundamentals, bool) {
	f, ok := p.fundamentals[symbol]
	return f, ok
}

// Universe returns the symbol list for a named universe, in table order.
func (p *StaticProvider) Universe(name string) ([]string, bool) {
	u, ok := p.universes[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(u))
	copy(out, u)
	return out, true
}

// nyseListed tags the built-in US symbols traded on NYSE; the rest of
// the us30 universe defaults to NASD.
var nyseListed = map[string]bool{
	"BRK.B": true, "JPM": true, "V": true, "JNJ": true, "WMT": true,
	"PG": true, "MA": true, "HD": true, "XOM": true, "CVX": true,
	"KO": true, "MRK": true, "ABBV": true, "MCD": true, "IBM": true,
	"DIS": true, "NKE": true, "BA": true, "CAT": true,
}

// builtinFundamentals is a point-in-time snapshot. Ratios are percentages.
var builtinFundamentals = []types.Fundamentals{
	// KOSPI top 30.
	{Symbol: "005930", Name: "Samsung Electronics", Sector: "semiconductor", PER: 11.2, ROE: 12.8, DividendYield: 2.1, OperatingMargin: 14.5, RevenueGrowthYoY: 8.4, HasBuyback: true},
	{Symbol: "000660", Name: "SK hynix", Sector: "semiconductor", PER: 8.9, ROE: 18.3, DividendYield: 1.2, OperatingMargin: 22.7, RevenueGrowthYoY: 34.2, HasBuyback: false},
	{Symbol: "373220", Name: "LG Energy Solution", Sector: "battery", PER: 48.5, ROE: 6.2, DividendYield: 0.0, OperatingMargin: 5.1, RevenueGrowthYoY: 11.6, HasBuyback: false},
	{Symbol: "207940", Name: "Samsung Biologics", Sector: "bio", PER: 62.3, ROE: 10.5, DividendYield: 0.0, OperatingMargin: 27.8, RevenueGrowthYoY: 18.9, HasBuyback: false},
	{Symbol: "005380", Name: "Hyundai Motor", Sector: "auto", PER: 5.4, ROE: 13.6, DividendYield: 4.8, OperatingMargin: 9.3, RevenueGrowthYoY: 7.2, HasBuyback: true},
	{Symbol: "000270", Name: "Kia", Sector: "auto", PER: 4.6, ROE: 16.9, DividendYield: 5.2, OperatingMargin: 11.2, RevenueGrowthYoY: 6.1, HasBuyback: true},
	{Symbol: "068270", Name: "Celltrion", Sector: "bio", PER: 38.4, ROE: 8.1, DividendYield: 0.3, OperatingMargin: 18.2, RevenueGrowthYoY: 21.4, HasBuyback: false},
	{Symbol: "005490", Name: "POSCO Holdings", Sector: "steel", PER: 10.8, ROE: 3.9, DividendYield: 2.9, OperatingMargin: 4.2, RevenueGrowthYoY: -6.3, HasBuyback: false},
	{Symbol: "035420", Name: "NAVER", Sector: "internet", PER: 19.7, ROE: 9.4, DividendYield: 0.6, OperatingMargin: 16.1, RevenueGrowthYoY: 10.8, HasBuyback: true},
	{Symbol: "051910", Name: "LG Chem", Sector: "chemical", PER: 22.6, ROE: 4.7, DividendYield: 1.1, OperatingMargin: 3.8, RevenueGrowthYoY: -4.9, HasBuyback: false},
	{Symbol: "006400", Name: "Samsung SDI", Sector: "battery", PER: 14.3, ROE: 7.8, DividendYield: 0.4, OperatingMargin: 6.9, RevenueGrowthYoY: -2.1, HasBuyback: false},
	{Symbol: "028260", Name: "Samsung C&T", Sector: "industrial", PER: 9.1, ROE: 11.7, DividendYield: 2.4, OperatingMargin: 7.6, RevenueGrowthYoY: 5.3, HasBuyback: true},
	{Symbol: "012330", Name: "Hyundai Mobis", Sector: "auto", PER: 6.2, ROE: 10.8, DividendYield: 2.0, OperatingMargin: 5.9, RevenueGrowthYoY: 9.7, HasBuyback: true},
	{Symbol: "105560", Name: "KB Financial", Sector: "finance", PER: 5.8, ROE: 10.2, DividendYield: 4.1, OperatingMargin: 32.4, RevenueGrowthYoY: 6.8, HasBuyback: true},
	{Symbol: "055550", Name: "Shinhan Financial", Sector: "finance", PER: 5.1, ROE: 9.1, DividendYield: 4.6, OperatingMargin: 29.8, RevenueGrowthYoY: 4.2, HasBuyback: true},
	{Symbol: "035720", Name: "Kakao", Sector: "internet", PER: 41.2, ROE: 2.8, DividendYield: 0.1, OperatingMargin: 6.4, RevenueGrowthYoY: 3.9, HasBuyback: false},
	{Symbol: "032830", Name: "Samsung Life", Sector: "finance", PER: 7.9, ROE: 6.8, DividendYield: 3.8, OperatingMargin: 11.3, RevenueGrowthYoY: 2.6, HasBuyback: false},
	{Symbol: "086790", Name: "Hana Financial", Sector: "finance", PER: 4.7, ROE: 9.8, DividendYield: 5.1, OperatingMargin: 28.1, RevenueGrowthYoY: 5.9, HasBuyback: true},
	{Symbol: "003670", Name: "POSCO Future M", Sector: "battery", PER: 76.4, ROE: 3.1, DividendYield: 0.2, OperatingMargin: 1.9, RevenueGrowthYoY: 14.7, HasBuyback: false},
	{Symbol: "015760", Name: "KEPCO", Sector: "utility", PER: 3.8, ROE: 4.2, DividendYield: 0.0, OperatingMargin: 6.1, RevenueGrowthYoY: -8.2, HasBuyback: false},
	{Symbol: "034730", Name: "SK Inc", Sector: "industrial", PER: 8.4, ROE: 5.9, DividendYield: 3.2, OperatingMargin: 8.8, RevenueGrowthYoY: 3.1, HasBuyback: true},
	{Symbol: "009150", Name: "Samsung Electro-Mechanics", Sector: "semiconductor", PER: 16.8, ROE: 11.3, DividendYield: 1.4, OperatingMargin: 10.7, RevenueGrowthYoY: 12.3, HasBuyback: false},
	{Symbol: "066570", Name: "LG Electronics", Sector: "consumer", PER: 9.6, ROE: 8.7, DividendYield: 1.1, OperatingMargin: 4.6, RevenueGrowthYoY: 6.7, HasBuyback: false},
	{Symbol: "011200", Name: "HMM", Sector: "shipping", PER: 4.1, ROE: 7.2, DividendYield: 3.9, OperatingMargin: 12.4, RevenueGrowthYoY: -11.8, HasBuyback: false},
	{Symbol: "010130", Name: "Korea Zinc", Sector: "steel", PER: 12.7, ROE: 9.6, DividendYield: 2.7, OperatingMargin: 9.1, RevenueGrowthYoY: 8.9, HasBuyback: false},
	{Symbol: "096770", Name: "SK Innovation", Sector: "chemical", PER: 18.9, ROE: 2.4, DividendYield: 0.8, OperatingMargin: 2.1, RevenueGrowthYoY: -3.4, HasBuyback: false},
	{Symbol: "033780", Name: "KT&G", Sector: "consumer", PER: 10.4, ROE: 11.9, DividendYield: 5.6, OperatingMargin: 22.3, RevenueGrowthYoY: 4.8, HasBuyback: true},
	{Symbol: "017670", Name: "SK Telecom", Sector: "telecom", PER: 8.7, ROE: 9.3, DividendYield: 6.2, OperatingMargin: 11.8, RevenueGrowthYoY: 1.9, HasBuyback: true},
	{Symbol: "030200", Name: "KT", Sector: "telecom", PER: 7.2, ROE: 7.6, DividendYield: 5.4, OperatingMargin: 6.7, RevenueGrowthYoY: 2.8, HasBuyback: true},
	{Symbol: "090430", Name: "Amorepacific", Sector: "consumer", PER: 28.3, ROE: 4.1, DividendYield: 1.0, OperatingMargin: 5.2, RevenueGrowthYoY: -1.7, HasBuyback: false},

	// US top 30.
	{Symbol: "AAPL", Name: "Apple", Sector: "technology", PER: 29.4, ROE: 147.2, DividendYield: 0.5, OperatingMargin: 30.8, RevenueGrowthYoY: 2.1, HasBuyback: true},
	{Symbol: "MSFT", Name: "Microsoft", Sector: "technology", PER: 34.1, ROE: 38.5, DividendYield: 0.7, OperatingMargin: 44.6, RevenueGrowthYoY: 15.7, HasBuyback: true},
	{Symbol: "GOOGL", Name: "Alphabet", Sector: "technology", PER: 23.8, ROE: 29.8, DividendYield: 0.5, OperatingMargin: 32.1, RevenueGrowthYoY: 13.8, HasBuyback: true},
	{Symbol: "AMZN", Name: "Amazon", Sector: "consumer", PER: 41.6, ROE: 22.4, DividendYield: 0.0, OperatingMargin: 9.8, RevenueGrowthYoY: 11.9, HasBuyback: false},
	{Symbol: "NVDA", Name: "NVIDIA", Sector: "technology", PER: 52.7, ROE: 91.4, DividendYield: 0.0, OperatingMargin: 62.1, RevenueGrowthYoY: 122.4, HasBuyback: true},
	{Symbol: "META", Name: "Meta Platforms", Sector: "technology", PER: 24.9, ROE: 35.4, DividendYield: 0.4, OperatingMargin: 41.5, RevenueGrowthYoY: 22.1, HasBuyback: true},
	{Symbol: "TSLA", Name: "Tesla", Sector: "auto", PER: 68.2, ROE: 20.4, DividendYield: 0.0, OperatingMargin: 8.2, RevenueGrowthYoY: 1.0, HasBuyback: false},
	{Symbol: "BRK.B", Name: "Berkshire Hathaway", Sector: "finance", PER: 9.3, ROE: 11.8, DividendYield: 0.0, OperatingMargin: 24.7, RevenueGrowthYoY: 5.2, HasBuyback: true},
	{Symbol: "JPM", Name: "JPMorgan Chase", Sector: "finance", PER: 11.6, ROE: 17.2, DividendYield: 2.3, OperatingMargin: 41.2, RevenueGrowthYoY: 9.4, HasBuyback: true},
	{Symbol: "V", Name: "Visa", Sector: "finance", PER: 30.1, ROE: 49.8, DividendYield: 0.8, OperatingMargin: 67.1, RevenueGrowthYoY: 9.6, HasBuyback: true},
	{Symbol: "JNJ", Name: "Johnson & Johnson", Sector: "healthcare", PER: 14.8, ROE: 23.8, DividendYield: 3.1, OperatingMargin: 26.1, RevenueGrowthYoY: 4.3, HasBuyback: true},
	{Symbol: "WMT", Name: "Walmart", Sector: "consumer", PER: 28.6, ROE: 20.7, DividendYield: 1.3, OperatingMargin: 4.3, RevenueGrowthYoY: 5.7, HasBuyback: true},
	{Symbol: "PG", Name: "Procter & Gamble", Sector: "consumer", PER: 25.3, ROE: 32.6, DividendYield: 2.4, OperatingMargin: 23.4, RevenueGrowthYoY: 2.5, HasBuyback: true},
	{Symbol: "MA", Name: "Mastercard", Sector: "finance", PER: 34.2, ROE: 168.4, DividendYield: 0.6, OperatingMargin: 57.9, RevenueGrowthYoY: 11.2, HasBuyback: true},
	{Symbol: "HD", Name: "Home Depot", Sector: "consumer", PER: 22.9, ROE: 384.1, DividendYield: 2.5, OperatingMargin: 14.2, RevenueGrowthYoY: 1.9, HasBuyback: true},
	{Symbol: "XOM", Name: "Exxon Mobil", Sector: "energy", PER: 12.8, ROE: 18.1, DividendYield: 3.3, OperatingMargin: 13.7, RevenueGrowthYoY: -4.6, HasBuyback: true},
	{Symbol: "CVX", Name: "Chevron", Sector: "energy", PER: 13.4, ROE: 11.7, DividendYield: 4.2, OperatingMargin: 10.8, RevenueGrowthYoY: -6.1, HasBuyback: true},
	{Symbol: "KO", Name: "Coca-Cola", Sector: "consumer", PER: 24.7, ROE: 42.1, DividendYield: 3.0, OperatingMargin: 28.9, RevenueGrowthYoY: 3.4, HasBuyback: false},
	{Symbol: "PEP", Name: "PepsiCo", Sector: "consumer", PER: 21.8, ROE: 49.2, DividendYield: 3.2, OperatingMargin: 14.8, RevenueGrowthYoY: 1.2, HasBuyback: true},
	{Symbol: "MRK", Name: "Merck", Sector: "healthcare", PER: 13.2, ROE: 28.4, DividendYield: 2.9, OperatingMargin: 29.8, RevenueGrowthYoY: 6.9, HasBuyback: false},
	{Symbol: "ABBV", Name: "AbbVie", Sector: "healthcare", PER: 15.6, ROE: 44.8, DividendYield: 3.4, OperatingMargin: 31.2, RevenueGrowthYoY: 3.7, HasBuyback: false},
	{Symbol: "COST", Name: "Costco", Sector: "consumer", PER: 49.8, ROE: 29.7, DividendYield: 0.5, OperatingMargin: 3.6, RevenueGrowthYoY: 6.2, HasBuyback: false},
	{Symbol: "MCD", Name: "McDonald's", Sector: "consumer", PER: 24.1, ROE: 0.0, DividendYield: 2.3, OperatingMargin: 45.7, RevenueGrowthYoY: 1.6, HasBuyback: true},
	{Symbol: "CSCO", Name: "Cisco Systems", Sector: "technology", PER: 16.4, ROE: 21.6, DividendYield: 2.9, OperatingMargin: 26.8, RevenueGrowthYoY: -5.6, HasBuyback: true},
	{Symbol: "INTC", Name: "Intel", Sector: "technology", PER: 0.0, ROE: -3.1, DividendYield: 1.4, OperatingMargin: -2.4, RevenueGrowthYoY: -7.9, HasBuyback: false},
	{Symbol: "IBM", Name: "IBM", Sector: "technology", PER: 19.2, ROE: 26.1, DividendYield: 3.6, OperatingMargin: 15.4, RevenueGrowthYoY: 2.0, HasBuyback: false},
	{Symbol: "DIS", Name: "Walt Disney", Sector: "consumer", PER: 36.7, ROE: 4.9, DividendYield: 0.9, OperatingMargin: 10.3, RevenueGrowthYoY: 2.8, HasBuyback: false},
	{Symbol: "NKE", Name: "Nike", Sector: "consumer", PER: 27.4, ROE: 36.2, DividendYield: 1.9, OperatingMargin: 11.6, RevenueGrowthYoY: -9.8, HasBuyback: true},
	{Symbol: "BA", Name: "Boeing", Sector: "industrial", PER: 0.0, ROE: -41.2, DividendYield: 0.0, OperatingMargin: -10.4, RevenueGrowthYoY: -14.5, HasBuyback: false},
	{Symbol: "CAT", Name: "Caterpillar", Sector: "industrial", PER: 16.1, ROE: 57.8, DividendYield: 1.6, OperatingMargin: 20.9, RevenueGrowthYoY: -3.6, HasBuyback: true},
}
