// Package broker implements the brokerage REST client (domestic + overseas).
//
// The client is the sole gateway to the broker:
//   - Quote / QuoteOverseas:           current-price snapshots
//   - PlaceOrder / PlaceOrderOverseas: cash orders (POST, hashkey-signed)
//   - Balance / BalanceOverseas:       holdings + account summary
//
// Every request is paced through a blocking rate gate (1 request per 60 ms
// per client instance), carries a Bearer token managed by Session, and
// selects its transaction ID from the mock or live table fixed at
// construction. A 401 clears the token and the request is retried exactly
// once with a fresh one.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/lunara-kim/market-auto-trader-sub000/internal/config"
	"github.com/lunara-kim/market-auto-trader-sub000/pkg/types"
)

// paceInterval is the minimum gap between requests from one client instance.
const paceInterval = 60 * time.Millisecond

// Client is the brokerage REST API client. Safe for concurrent use.
type Client struct {
	http    *resty.Client
	session *Session
	pace    *rate.Limiter
	tr      trTable

	cano   string // account number (before the dash)
	prdtCd string // product code (after the dash)
	mock   bool

	logger *slog.Logger
}

// NewClient creates a broker client. The account identifier is split into
// (account number, product code) here; every order body carries both.
func NewClient(cfg config.BrokerConfig, logger *slog.Logger) (*Client, error) {
	cano, prdtCd, ok := strings.Cut(cfg.AccountNo, "-")
	if !ok || cano == "" || prdtCd == "" {
		return nil, &ValidationError{Msg: fmt.Sprintf("account number %q must look like XXXXXXXX-XX", cfg.AccountNo)}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json; charset=utf-8")

	tr := liveTR
	if cfg.Mock {
		tr = mockTR
	}

	return &Client{
		http:    httpClient,
		session: NewSession(httpClient, cfg.AppKey, cfg.AppSecret, logger),
		pace:    rate.NewLimiter(rate.Every(paceInterval), 1),
		tr:      tr,
		cano:    cano,
		prdtCd:  prdtCd,
		mock:    cfg.Mock,
		logger:  logger.With("component", "broker"),
	}, nil
}

// Mock reports whether the client operates against the paper environment.
func (c *Client) Mock() bool {
	return c.mock
}

// apiResponse is the broker's common envelope. rt_cd "0" means success.
type apiResponse struct {
	RtCd    string          `json:"rt_cd"`
	MsgCd   string          `json:"msg_cd"`
	Msg1    string          `json:"msg1"`
	Output  json.RawMessage `json:"output"`
	Output1 json.RawMessage `json:"output1"`
	Output2 json.RawMessage `json:"output2"`
}

func (c *Client) headers(token, trID string) map[string]string {
	return map[string]string{
		"authorization": "Bearer " + token,
		"appkey":        c.session.appKey,
		"appsecret":     c.session.appSecret,
		"tr_id":         trID,
		"custtype":      "P",
	}
}

// doAuthed paces the request, attaches a token, and retries exactly once on
// a 401 after invalidating the cached token. HTTP 5xx maps to BrokerError.
func (c *Client) doAuthed(ctx context.Context, fn func(token string) (*resty.Response, error)) (*resty.Response, error) {
	if err := c.pace.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := fn(token)
	if err != nil {
		return nil, &BrokerError{Msg: err.Error()}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.session.Invalidate()
		if err := c.pace.Wait(ctx); err != nil {
			return nil, err
		}
		token, err = c.session.Token(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = fn(token)
		if err != nil {
			return nil, &BrokerError{Msg: err.Error()}
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, &AuthError{Msg: "still unauthorized after token refresh"}
		}
	}

	if resp.StatusCode() >= 500 {
		return nil, &BrokerError{Status: resp.StatusCode(), Msg: resp.String()}
	}
	return resp, nil
}

// envelope decodes the common response wrapper and checks rt_cd.
// orderPath controls whether a non-zero rt_cd is an OrderError (order
// endpoints: the broker rejected the order, final) or a BrokerError
// (inquiries: transient).
func envelope(resp *resty.Response, orderPath bool) (*apiResponse, error) {
	var env apiResponse
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, &BrokerError{Status: resp.StatusCode(), Msg: fmt.Sprintf("malformed response: %v", err)}
	}
	if env.RtCd != "0" {
		if orderPath {
			return nil, &OrderError{Code: env.MsgCd, Msg: env.Msg1}
		}
		return nil, &BrokerError{Code: env.MsgCd, Msg: env.Msg1}
	}
	return &env, nil
}

// parseNum converts the broker's comma-grouped numeric strings. Empty or
// malformed values become 0.
func parseNum(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Quote fetches the current-price snapshot for a domestic symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*types.Quote, error) {
	if !types.IsDomestic(symbol) {
		return nil, &ValidationError{Msg: fmt.Sprintf("not a domestic symbol: %q", symbol)}
	}

	resp, err := c.doAuthed(ctx, func(token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeaders(c.headers(token, c.tr.domesticQuote)).
			SetQueryParams(map[string]string{
				"FID_COND_MRKT_DIV_CODE": "J",
				"FID_INPUT_ISCD":         symbol,
			}).
			Get("/uapi/domestic-stock/v1/quotations/inquire-price")
	})
	if err != nil {
		return nil, err
	}
	env, err := envelope(resp, false)
	if err != nil {
		return nil, err
	}

	var out struct {
		StckPrpr string `json:"stck_prpr"` // current price
		PrdyCtrt string `json:"prdy_ctrt"` // prior-close percent change
		StckHgpr string `json:"stck_hgpr"` // intraday high
		StckLwpr string `json:"stck_lwpr"` // intraday low
		Per      string `json:"per"`
		Pbr      string `json:"pbr"`
	}
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, &BrokerError{Msg: fmt.Sprintf("malformed quote output: %v", err)}
	}

	price := parseNum(out.StckPrpr)
	if price <= 0 {
		return nil, &BrokerError{Msg: fmt.Sprintf("empty quote for %s", symbol)}
	}
	return &types.Quote{
		Symbol:    symbol,
		Price:     price,
		ChangePct: parseNum(out.PrdyCtrt),
		High:      parseNum(out.StckHgpr),
		Low:       parseNum(out.StckLwpr),
		PER:       parseNum(out.Per),
		PBR:       parseNum(out.Pbr),
	}, nil
}

// QuoteOverseas fetches the current-price snapshot for an overseas symbol.
// Fundamental ratios are not available on this endpoint.
func (c *Client) QuoteOverseas(ctx context.Context, symbol string, exch types.Exchange) (*types.Quote, error) {
	if !types.IsOverseas(symbol) {
		return nil, &ValidationError{Msg: fmt.Sprintf("not an overseas symbol: %q", symbol)}
	}
	if !types.ValidExchange(exch) {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown exchange %q", exch)}
	}

	resp, err := c.doAuthed(ctx, func(token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeaders(c.headers(token, c.tr.overseasQuote)).
			SetQueryParams(map[string]string{
				"AUTH": "",
				"EXCD": exchangeCode[exch],
				"SYMB": symbol,
			}).
			Get("/uapi/overseas-price/v1/quotations/price")
	})
	if err != nil {
		return nil, err
	}
	env, err := envelope(resp, false)
	if err != nil {
		return nil, err
	}

	var out struct {
		Last string `json:"last"` // current price
		Rate string `json:"rate"` // prior-close percent change
		High string `json:"high"`
		Low  string `json:"low"`
	}
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, &BrokerError{Msg: fmt.Sprintf("malformed quote output: %v", err)}
	}

	price := parseNum(out.Last)
	if price <= 0 {
		return nil, &BrokerError{Msg: fmt.Sprintf("empty quote for %s", symbol)}
	}
	return &types.Quote{
		Symbol:    symbol,
		Price:     price,
		ChangePct: parseNum(out.Rate),
		High:      parseNum(out.High),
		Low:       parseNum(out.Low),
	}, nil
}

// hashKey fetches the request-body hash a POST order must carry.
// Fetched per order, never cached.
func (c *Client) hashKey(ctx context.Context, body map[string]string) (string, error) {
	if err := c.pace.Wait(ctx); err != nil {
		return "", err
	}

	var result struct {
		Hash string `json:"HASH"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"appkey":    c.session.appKey,
			"appsecret": c.session.appSecret,
		}).
		SetBody(body).
		SetResult(&result).
		Post("/uapi/hashkey")
	if err != nil {
		return "", &BrokerError{Msg: fmt.Sprintf("hashkey: %v", err)}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &BrokerError{Status: resp.StatusCode(), Msg: "hashkey: " + resp.String()}
	}
	if result.Hash == "" {
		return "", &BrokerError{Msg: "hashkey: empty hash in response"}
	}
	return result.Hash, nil
}

type orderOutput struct {
	Odno   string `json:"ODNO"`    // broker order number
	OrdTmd string `json:"ORD_TMD"` // broker order timestamp (HHMMSS)
}

// PlaceOrder submits a domestic cash order. A zero price sends a market
// order; a positive price sends a limit order.
func (c *Client) PlaceOrder(ctx context.Context, order types.Order) (*types.OrderReceipt, error) {
	if !types.IsDomestic(order.Symbol) {
		return nil, &ValidationError{Msg: fmt.Sprintf("not a domestic symbol: %q", order.Symbol)}
	}
	if order.Quantity < 1 {
		return nil, &ValidationError{Msg: fmt.Sprintf("quantity must be >= 1, got %d", order.Quantity)}
	}
	if order.Price < 0 {
		return nil, &ValidationError{Msg: "price must not be negative"}
	}

	trID := c.tr.domesticBuy
	if order.Side == types.Sell {
		trID = c.tr.domesticSell
	}

	// ORD_DVSN 01 = market, 00 = limit.
	ordDvsn, unpr := "01", "0"
	if order.Price > 0 {
		ordDvsn = "00"
		unpr = strconv.FormatInt(int64(order.Price), 10)
	}

	body := map[string]string{
		"CANO":         c.cano,
		"ACNT_PRDT_CD": c.prdtCd,
		"PDNO":         order.Symbol,
		"ORD_DVSN":     ordDvsn,
		"ORD_QTY":      strconv.FormatInt(order.Quantity, 10),
		"ORD_UNPR":     unpr,
	}

	return c.submitOrder(ctx, "/uapi/domestic-stock/v1/trading/order-cash", trID, body, order)
}

// PlaceOrderOverseas submits an overseas order. Overseas orders must carry
// a limit price.
func (c *Client) PlaceOrderOverseas(ctx context.Context, order types.Order) (*types.OrderReceipt, error) {
	if !types.IsOverseas(order.Symbol) {
		return nil, &ValidationError{Msg: fmt.Sprintf("not an overseas symbol: %q", order.Symbol)}
	}
	if !types.ValidExchange(order.Exchange) {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown exchange %q", order.Exchange)}
	}
	if order.Quantity < 1 {
		return nil, &ValidationError{Msg: fmt.Sprintf("quantity must be >= 1, got %d", order.Quantity)}
	}
	if order.Price <= 0 {
		return nil, &ValidationError{Msg: "overseas orders require a limit price"}
	}

	trID := c.tr.overseasBuy
	if order.Side == types.Sell {
		trID = c.tr.overseasSell
	}

	body := map[string]string{
		"CANO":            c.cano,
		"ACNT_PRDT_CD":    c.prdtCd,
		"OVRS_EXCG_CD":    string(order.Exchange),
		"PDNO":            order.Symbol,
		"ORD_QTY":         strconv.FormatInt(order.Quantity, 10),
		"OVRS_ORD_UNPR":   strconv.FormatFloat(order.Price, 'f', 2, 64),
		"ORD_SVR_DVSN_CD": "0",
		"ORD_DVSN":        "00",
	}

	return c.submitOrder(ctx, "/uapi/overseas-stock/v1/trading/order", trID, body, order)
}

func (c *Client) submitOrder(ctx context.Context, path, trID string, body map[string]string, order types.Order) (*types.OrderReceipt, error) {
	hash, err := c.hashKey(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.doAuthed(ctx, func(token string) (*resty.Response, error) {
		headers := c.headers(token, trID)
		headers["hashkey"] = hash
		return c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(body).
			Post(path)
	})
	if err != nil {
		return nil, err
	}
	env, err := envelope(resp, true)
	if err != nil {
		return nil, err
	}

	var out orderOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, &BrokerError{Msg: fmt.Sprintf("malformed order output: %v", err)}
	}

	c.logger.Info("order accepted",
		"symbol", order.Symbol,
		"side", order.Side,
		"qty", order.Quantity,
		"order_no", out.Odno,
	)
	return &types.OrderReceipt{OrderNo: out.Odno, Timestamp: out.OrdTmd}, nil
}

// Balance fetches domestic holdings and the account summary.
func (c *Client) Balance(ctx context.Context) (*types.Balance, error) {
	resp, err := c.doAuthed(ctx, func(token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeaders(c.headers(token, c.tr.domesticBalance)).
			SetQueryParams(map[string]string{
				"CANO":                  c.cano,
				"ACNT_PRDT_CD":          c.prdtCd,
				"AFHR_FLPR_YN":          "N",
				"OFL_YN":                "",
				"INQR_DVSN":             "02",
				"UNPR_DVSN":             "01",
				"FUND_STTL_ICLD_YN":     "N",
				"FNCG_AMT_AUTO_RDPT_YN": "N",
				"PRCS_DVSN":             "01",
				"CTX_AREA_FK100":        "",
				"CTX_AREA_NK100":        "",
			}).
			Get("/uapi/domestic-stock/v1/trading/inquire-balance")
	})
	if err != nil {
		return nil, err
	}
	env, err := envelope(resp, false)
	if err != nil {
		return nil, err
	}

	var holdings []struct {
		Pdno         string `json:"pdno"`          // symbol
		PrdtName     string `json:"prdt_name"`     // name
		HldgQty      string `json:"hldg_qty"`      // held quantity
		PchsAvgPric  string `json:"pchs_avg_pric"` // average cost
		Prpr         string `json:"prpr"`          // current price
		EvluPflsAmt  string `json:"evlu_pfls_amt"` // PnL amount
		EvluPflsRt   string `json:"evlu_pfls_rt"`  // PnL percent
	}
	if len(env.Output1) > 0 {
		if err := json.Unmarshal(env.Output1, &holdings); err != nil {
			return nil, &BrokerError{Msg: fmt.Sprintf("malformed balance output1: %v", err)}
		}
	}

	var summaries []struct {
		DncaTotAmt string `json:"dnca_tot_amt"` // cash
		TotEvluAmt string `json:"tot_evlu_amt"` // total evaluation
	}
	if len(env.Output2) > 0 {
		if err := json.Unmarshal(env.Output2, &summaries); err != nil {
			return nil, &BrokerError{Msg: fmt.Sprintf("malformed balance output2: %v", err)}
		}
	}

	bal := &types.Balance{}
	for _, h := range holdings {
		qty := int64(parseNum(h.HldgQty))
		if qty <= 0 {
			continue
		}
		bal.Positions = append(bal.Positions, types.Position{
			Symbol:       h.Pdno,
			Name:         h.PrdtName,
			Quantity:     qty,
			AvgPrice:     parseNum(h.PchsAvgPric),
			CurrentPrice: parseNum(h.Prpr),
			PnLAmount:    parseNum(h.EvluPflsAmt),
			PnLPct:       parseNum(h.EvluPflsRt),
		})
	}
	if len(summaries) > 0 {
		bal.Summary = types.BalanceSummary{
			Cash:      parseNum(summaries[0].DncaTotAmt),
			TotalEval: parseNum(summaries[0].TotEvluAmt),
		}
	}
	return bal, nil
}

// BalanceOverseas fetches overseas holdings and the account summary.
func (c *Client) BalanceOverseas(ctx context.Context) (*types.Balance, error) {
	resp, err := c.doAuthed(ctx, func(token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeaders(c.headers(token, c.tr.overseasBalance)).
			SetQueryParams(map[string]string{
				"CANO":           c.cano,
				"ACNT_PRDT_CD":   c.prdtCd,
				"OVRS_EXCG_CD":   "NASD",
				"TR_CRCY_CD":     "USD",
				"CTX_AREA_FK200": "",
				"CTX_AREA_NK200": "",
			}).
			Get("/uapi/overseas-stock/v1/trading/inquire-balance")
	})
	if err != nil {
		return nil, err
	}
	env, err := envelope(resp, false)
	if err != nil {
		return nil, err
	}

	var holdings []struct {
		OvrsPdno        string `json:"ovrs_pdno"`
		OvrsItemName    string `json:"ovrs_item_name"`
		OvrsCblcQty     string `json:"ovrs_cblc_qty"`
		PchsAvgPric     string `json:"pchs_avg_pric"`
		NowPric2        string `json:"now_pric2"`
		FrcrEvluPflsAmt string `json:"frcr_evlu_pfls_amt"`
		EvluPflsRt      string `json:"evlu_pfls_rt"`
		OvrsExcgCd      string `json:"ovrs_excg_cd"`
	}
	if len(env.Output1) > 0 {
		if err := json.Unmarshal(env.Output1, &holdings); err != nil {
			return nil, &BrokerError{Msg: fmt.Sprintf("malformed balance output1: %v", err)}
		}
	}

	var summary struct {
		FrcrDnclAmt1 string `json:"frcr_dncl_amt1"` // cash (settlement currency)
		TotAsstAmt   string `json:"tot_asst_amt"`   // total evaluation
	}
	if len(env.Output2) > 0 {
		if err := json.Unmarshal(env.Output2, &summary); err != nil {
			return nil, &BrokerError{Msg: fmt.Sprintf("malformed balance output2: %v", err)}
		}
	}

	bal := &types.Balance{
		Summary: types.BalanceSummary{
			Cash:      parseNum(summary.FrcrDnclAmt1),
			TotalEval: parseNum(summary.TotAsstAmt),
		},
	}
	for _, h := range holdings {
		qty := int64(parseNum(h.OvrsCblcQty))
		if qty <= 0 {
			continue
		}
		bal.Positions = append(bal.Positions, types.Position{
			Symbol:       h.OvrsPdno,
			Name:         h.OvrsItemName,
			Quantity:     qty,
			AvgPrice:     parseNum(h.PchsAvgPric),
			CurrentPrice: parseNum(h.NowPric2),
			PnLAmount:    parseNum(h.FrcrEvluPflsAmt),
			PnLPct:       parseNum(h.EvluPflsRt),
			Exchange:     types.Exchange(h.OvrsExcgCd),
		})
	}
	return bal, nil
}
