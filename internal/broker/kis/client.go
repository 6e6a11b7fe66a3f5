// Package kis 实现韩国投资证券（KIS）OpenAPI 的券商网关。
// TR ID 等环境相关的不透明代码全部来自配置，不在代码里写死。
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"kairos/internal/broker"
	"kairos/internal/config"
	"kairos/internal/logger"
	"kairos/internal/pkg/circuit"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	realBaseURL    = "https://openapi.koreainvestment.com:9443"
	sandboxBaseURL = "https://openapivts.koreainvestment.com:29443"

	// 官方令牌 24 小时有效，留 1 小时余量按 23 小时缓存。
	tokenTTL = 23 * time.Hour

	// 市价单：ORD_DVSN=03，单价填 0。
	ordDvsnMarket = "03"
)

// Client 封装 KIS REST 调用：令牌生命周期、下单与余额查询。
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        config.BrokerConfig
	breaker    *circuit.Breaker

	tokenMu      sync.Mutex
	token        string
	tokenExpires time.Time
	tokenGroup   singleflight.Group
}

func NewClient(cfg config.BrokerConfig) (*Client, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("broker app_key/app_secret 不能为空")
	}
	if cfg.AccountNo == "" {
		return nil, fmt.Errorf("broker account_no 不能为空")
	}
	base := cfg.BaseURL
	if base == "" {
		if cfg.RealMode {
			base = realBaseURL
		} else {
			base = sandboxBaseURL
		}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		breaker:    circuit.NewBreaker("kis", 5, 30*time.Second),
	}, nil
}

// SetHTTPClient 供测试替换底层 HTTP 客户端。
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// accessToken 返回缓存的令牌；缺失或过期时重新签发。
// 并发调用通过 singleflight 合并为一次签发请求。
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExpires) {
		tok := c.token
		c.tokenMu.Unlock()
		return tok, nil
	}
	c.tokenMu.Unlock()

	v, err, _ := c.tokenGroup.Do("token", func() (any, error) {
		// 进组后再查一次，避免排队期间别人已签发。
		c.tokenMu.Lock()
		if c.token != "" && time.Now().Before(c.tokenExpires) {
			tok := c.token
			c.tokenMu.Unlock()
			return tok, nil
		}
		c.tokenMu.Unlock()
		return c.issueToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) issueToken(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.cfg.AppKey,
		"appsecret":  c.cfg.AppSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &broker.TransportError{Op: "token", Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &broker.TransportError{Op: "token", StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%s", strings.TrimSpace(string(raw)))}
	}
	tok := gjson.GetBytes(raw, "access_token").String()
	if tok == "" {
		return "", &broker.RejectionError{Op: "token", Message: "响应缺少 access_token", Raw: raw}
	}

	c.tokenMu.Lock()
	c.token = tok
	c.tokenExpires = time.Now().Add(tokenTTL)
	c.tokenMu.Unlock()
	logger.Infof("[kis] access token issued, valid until %s", c.tokenExpires.Format(time.RFC3339))
	return tok, nil
}

// invalidateToken 在鉴权失败后清空缓存，下一次调用重新签发。
func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenExpires = time.Time{}
	c.tokenMu.Unlock()
}

func (c *Client) headers(ctx context.Context, trID string) (http.Header, error) {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Authorization", "Bearer "+tok)
	h.Set("appkey", c.cfg.AppKey)
	h.Set("appsecret", c.cfg.AppSecret)
	h.Set("tr_id", trID)
	return h, nil
}

// PlaceOrder 提交市价现金委托。本地校验先于任何网络调用；
// 2xx 但 rt_cd 非 "0" 视为业务拒绝，随 Raw 一起返回而非报错。
func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	if !req.Side.Valid() {
		return nil, fmt.Errorf("side 必须是 BUY 或 SELL，got %q", req.Side)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity 必须大于 0，got %d", req.Quantity)
	}
	trID := c.cfg.TRIDOrderBuy
	if req.Side == broker.SideSell {
		trID = c.cfg.TRIDOrderSell
	}
	if trID == "" {
		return nil, fmt.Errorf("未配置 %s 方向的委托 TR ID", req.Side)
	}

	price := "0"
	if req.PriceHint > 0 {
		price = strconv.FormatFloat(req.PriceHint, 'f', -1, 64)
	}
	body := map[string]string{
		"CANO":         c.cfg.AccountNo,
		"ACNT_PRDT_CD": c.cfg.AccountCode,
		"PDNO":         req.Instrument,
		"ORD_DVSN":     ordDvsnMarket,
		"ORD_QTY":      strconv.FormatInt(req.Quantity, 10),
		"ORD_UNPR":     price,
	}
	raw, err := c.do(ctx, http.MethodPost, "/uapi/domestic-stock/v1/trading/order-cash", trID, body)
	if err != nil {
		return nil, err
	}

	rtCd := gjson.GetBytes(raw, "rt_cd").String()
	res := &broker.OrderResult{
		Accepted:   rtCd == "" || rtCd == "0",
		ResultCode: rtCd,
		Message:    gjson.GetBytes(raw, "msg1").String(),
		OrderNo:    gjson.GetBytes(raw, "output.ODNO").String(),
		Raw:        raw,
	}
	if !res.Accepted {
		logger.Warnf("[kis] order rejected: instrument=%s side=%s qty=%d rt_cd=%s msg=%s",
			req.Instrument, req.Side, req.Quantity, res.ResultCode, res.Message)
	}
	return res, nil
}

// GetBalance 查询持仓与账户汇总。output1 为持仓明细，
// output2[0] 为汇总；现金优先取 dnca_tot_amt，退回 nass_amt。
func (c *Client) GetBalance(ctx context.Context) (*broker.Balance, error) {
	if c.cfg.TRIDBalance == "" {
		return nil, fmt.Errorf("未配置余额查询 TR ID")
	}
	path := fmt.Sprintf("/uapi/domestic-stock/v1/trading/inquire-balance?CANO=%s&ACNT_PRDT_CD=%s",
		c.cfg.AccountNo, c.cfg.AccountCode)
	raw, err := c.do(ctx, http.MethodGet, path, c.cfg.TRIDBalance, nil)
	if err != nil {
		return nil, err
	}
	rtCd := gjson.GetBytes(raw, "rt_cd").String()
	if rtCd != "" && rtCd != "0" {
		return nil, &broker.RejectionError{
			Op:         "balance",
			ResultCode: rtCd,
			Message:    gjson.GetBytes(raw, "msg1").String(),
			Raw:        raw,
		}
	}

	bal := &broker.Balance{Raw: raw}
	gjson.GetBytes(raw, "output1").ForEach(func(_, h gjson.Result) bool {
		qty := h.Get("hldg_qty").Int()
		if qty <= 0 {
			return true
		}
		bal.Holdings = append(bal.Holdings, broker.Holding{
			Instrument:   h.Get("pdno").String(),
			Name:         h.Get("prdt_name").String(),
			Quantity:     qty,
			Sellable:     h.Get("ord_psbl_qty").Int(),
			AvgPrice:     h.Get("pchs_avg_pric").Float(),
			CurrentPrice: h.Get("prpr").Float(),
			EvalAmount:   h.Get("evlu_amt").Float(),
			BuyAmount:    h.Get("pchs_amt").Float(),
			PnL:          h.Get("evlu_pfls_amt").Float(),
		})
		return true
	})
	summary := gjson.GetBytes(raw, "output2.0")
	cash := summary.Get("dnca_tot_amt").Float()
	if cash == 0 {
		cash = summary.Get("nass_amt").Float()
	}
	bal.Summary.Cash = cash
	return bal, nil
}

// do 执行一次带熔断保护的 KIS 调用，返回原始响应体。
func (c *Client) do(ctx context.Context, method, path, trID string, payload any) ([]byte, error) {
	op := method + " " + path
	if !c.breaker.Allow() {
		return nil, &broker.TransportError{Op: op, Err: fmt.Errorf("circuit open")}
	}
	headers, err := c.headers(ctx, trID)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("序列化请求失败: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &broker.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.invalidateToken()
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("%w: http %d", broker.ErrAuthExpired, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		return nil, &broker.TransportError{Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%s", strings.TrimSpace(string(raw)))}
	}
	c.breaker.RecordSuccess()
	return raw, nil
}
