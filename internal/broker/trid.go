package broker

import "github.com/lunara-kim/market-auto-trader-sub000/pkg/types"

// trTable maps operations to broker transaction IDs. Mock (paper) and live
// accounts use two disjoint tables; the operating mode is fixed at client
// construction and selects the table for every request.
type trTable struct {
	domesticBuy     string
	domesticSell    string
	domesticBalance string
	domesticQuote   string

	overseasBuy     string
	overseasSell    string
	overseasBalance string
	overseasQuote   string
}

var liveTR = trTable{
	domesticBuy:     "TTTC0802U",
	domesticSell:    "TTTC0801U",
	domesticBalance: "TTTC8434R",
	domesticQuote:   "FHKST01010100",

	overseasBuy:     "TTTT1002U",
	overseasSell:    "TTTT1006U",
	overseasBalance: "TTTS3012R",
	overseasQuote:   "HHDFS00000300",
}

var mockTR = trTable{
	domesticBuy:     "VTTC0802U",
	domesticSell:    "VTTC0801U",
	domesticBalance: "VTTC8434R",
	domesticQuote:   "FHKST01010100",

	overseasBuy:     "VTTT1002U",
	overseasSell:    "VTTT1006U",
	overseasBalance: "VTTS3012R",
	overseasQuote:   "HHDFS00000300",
}

// exchangeCode maps the order-side exchange tag to the quote API's venue code.
var exchangeCode = map[types.Exchange]string{
	types.ExchangeNASD: "NAS",
	types.ExchangeNYSE: "NYS",
	types.ExchangeAMEX: "AMS",
}
