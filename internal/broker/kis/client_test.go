package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kairos/internal/broker"
	"kairos/internal/config"

	"github.com/stretchr/testify/assert"
)

func testConfig(baseURL string) config.BrokerConfig {
	return config.BrokerConfig{
		BaseURL:        baseURL,
		AppKey:         "key",
		AppSecret:      "secret",
		AccountNo:      "12345678",
		AccountCode:    "01",
		TRIDOrderBuy:   "VTTC0802U",
		TRIDOrderSell:  "VTTC0801U",
		TRIDBalance:    "VTTC8434R",
		TimeoutSeconds: 5,
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(testConfig(srv.URL))
	assert.NoError(t, err)
	return srv, client
}

func TestClient_TokenIssuedOnceAndReused(t *testing.T) {
	var tokenCalls int64
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/tokenP":
			atomic.AddInt64(&tokenCalls, 1)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
		default:
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"rt_cd":"0","output1":[],"output2":[{"dnca_tot_amt":"1000"}]}`))
		}
	})

	for i := 0; i < 3; i++ {
		_, err := client.GetBalance(context.Background())
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&tokenCalls))
}

// 冷启动下的并发首调合并为一次签发。
func TestClient_ConcurrentTokenRefreshSingleFlighted(t *testing.T) {
	var tokenCalls int64
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/tokenP":
			atomic.AddInt64(&tokenCalls, 1)
			// 拖慢签发，让后续调用在首次签发飞行中到达
			time.Sleep(50 * time.Millisecond)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
		default:
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"rt_cd":"0","output1":[],"output2":[{"dnca_tot_amt":"1000"}]}`))
		}
	})

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GetBalance(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&tokenCalls))
}

func TestClient_PlaceOrder(t *testing.T) {
	var gotTRID string
	var gotBody map[string]string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/tokenP":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
		case "/uapi/domestic-stock/v1/trading/order-cash":
			gotTRID = r.Header.Get("tr_id")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"rt_cd":"0","msg1":"ok","output":{"ODNO":"0000117057"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	res, err := client.PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "005930",
		Side:       broker.SideBuy,
		Quantity:   3,
	})
	assert.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "0000117057", res.OrderNo)

	assert.Equal(t, "VTTC0802U", gotTRID)
	assert.Equal(t, "005930", gotBody["PDNO"])
	assert.Equal(t, "3", gotBody["ORD_QTY"])
	assert.Equal(t, "03", gotBody["ORD_DVSN"]) // 市价
	assert.Equal(t, "0", gotBody["ORD_UNPR"])
}

func TestClient_PlaceOrder_BusinessRejection(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		// 传输成功但业务失败码：终态拒绝，不是错误
		_, _ = w.Write([]byte(`{"rt_cd":"1","msg1":"모의투자 주문수량 초과"}`))
	})

	res, err := client.PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "005930", Side: broker.SideSell, Quantity: 1,
	})
	assert.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "1", res.ResultCode)
	assert.NotEmpty(t, res.Raw)
}

func TestClient_PlaceOrder_LocalValidation(t *testing.T) {
	reached := false
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})

	_, err := client.PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "005930", Side: "HOLD", Quantity: 1,
	})
	assert.Error(t, err)
	_, err = client.PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "005930", Side: broker.SideBuy, Quantity: 0,
	})
	assert.Error(t, err)
	assert.False(t, reached, "本地校验失败不应触网")
}

func TestClient_TransportErrorIsRetryable(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetBalance(context.Background())
	assert.Error(t, err)
	assert.True(t, broker.IsRetryable(err))
}

func TestClient_AuthErrorInvalidatesToken(t *testing.T) {
	var tokenCalls int64
	var balanceCalls int64
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/tokenP":
			n := atomic.AddInt64(&tokenCalls, 1)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-" + string(rune('0'+n))})
		default:
			if atomic.AddInt64(&balanceCalls, 1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"rt_cd":"0","output1":[],"output2":[{"dnca_tot_amt":"1000"}]}`))
		}
	})

	// 第一次：401，令牌被清空，本次不重试
	_, err := client.GetBalance(context.Background())
	assert.ErrorIs(t, err, broker.ErrAuthExpired)

	// 第二次：重新签发令牌后成功
	bal, err := client.GetBalance(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1000.0, bal.Summary.Cash)
	assert.Equal(t, int64(2), atomic.LoadInt64(&tokenCalls))
}

func TestClient_GetBalance_Parse(t *testing.T) {
	const payload = `{
		"rt_cd": "0",
		"output1": [
			{"pdno":"005930","prdt_name":"삼성전자","hldg_qty":"9","ord_psbl_qty":"8",
			 "pchs_avg_pric":"70000","prpr":"71000","evlu_amt":"639000","pchs_amt":"630000","evlu_pfls_amt":"9000"},
			{"pdno":"000000","hldg_qty":"0"}
		],
		"output2": [{"dnca_tot_amt":"361000"}]
	}`
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		assert.Equal(t, "VTTC8434R", r.Header.Get("tr_id"))
		_, _ = w.Write([]byte(payload))
	})

	bal, err := client.GetBalance(context.Background())
	assert.NoError(t, err)
	// 零持仓行被过滤
	assert.Len(t, bal.Holdings, 1)

	h := bal.Holdings[0]
	assert.Equal(t, "005930", h.Instrument)
	assert.Equal(t, int64(9), h.Quantity)
	assert.Equal(t, int64(8), h.Sellable)
	assert.Equal(t, 71000.0, h.CurrentPrice)
	assert.Equal(t, 639000.0, h.EvalAmount)
	assert.Equal(t, 9000.0, h.PnL)

	assert.Equal(t, 361000.0, bal.Summary.Cash)
	assert.InDelta(t, 1_000_000.0, bal.TotalValue(), 1e-6)
	assert.NotEmpty(t, bal.Raw)
}

func TestClient_GetBalance_BusinessRejection(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		_, _ = w.Write([]byte(`{"rt_cd":"7","msg1":"조회할 자료가 없습니다"}`))
	})

	_, err := client.GetBalance(context.Background())
	var rej *broker.RejectionError
	assert.ErrorAs(t, err, &rej)
	assert.Equal(t, "7", rej.ResultCode)
	assert.False(t, broker.IsRetryable(err))
}
