package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/ticker/internal/app"
	"github.com/bobmcallan/ticker/internal/common"
	"github.com/bobmcallan/ticker/internal/models"
)

func newTestServer(t *testing.T) (*Server, *app.App) {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Logging.Level = "error"

	a, err := app.NewAppWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	entries := make([]models.CatalogEntry, 0, 15)
	entries = append(entries,
		models.CatalogEntry{Code: "005930", Name: "삼성전자", Segment: "KOSPI"},
		models.CatalogEntry{Code: "000660", Name: "SK하이닉스", Segment: "KOSPI"},
	)
	for i := 1; i <= 13; i++ {
		entries = append(entries, models.CatalogEntry{Code: fmt.Sprintf("9000%02d", i), Name: fmt.Sprintf("삼성테스트%d", i)})
	}
	require.NoError(t, a.Catalogs[models.MarketKorea].Replace(entries))

	return NewServer(a), a
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type tickerListBody struct {
	Tickers []struct {
		Symbol       string        `json:"symbol"`
		Name         string        `json:"name"`
		Market       models.Market `json:"market"`
		ChangeStatus string        `json:"changeStatus"`
	} `json:"tickers"`
}

func decodeTickers(t *testing.T, rr *httptest.ResponseRecorder) tickerListBody {
	t.Helper()
	var body tickerListBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = doRequest(t, srv.Handler(), http.MethodPost, "/api/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, HEAD", rr.Header().Get("Allow"))
}

func TestHandleVersion(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, common.GetVersion(), body["version"])
	assert.Contains(t, body, "commit")
}

func TestHandleTickers_EmptyList(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/tickers", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"tickers":[]}`, rr.Body.String())
}

func TestHandleTickers_Add(t *testing.T) {
	srv, a := newTestServer(t)

	rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"005930","market":"korea"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created struct {
		Symbol       string `json:"symbol"`
		Name         string `json:"name"`
		ChangeStatus string `json:"changeStatus"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "005930", created.Symbol)
	assert.Equal(t, "삼성전자", created.Name)
	assert.Equal(t, "neutral", created.ChangeStatus)

	rr = doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"aapl","market":"US"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	list := a.Watchlist.List()
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[1].Symbol)
	assert.Equal(t, models.MarketUS, list[1].Market)

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/api/tickers", "")
	body := decodeTickers(t, rr)
	require.Len(t, body.Tickers, 2)
	assert.Equal(t, "005930", body.Tickers[0].Symbol)
	assert.Equal(t, "AAPL", body.Tickers[1].Symbol)
}

func TestHandleTickers_AddErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"005930","market":"korea"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate", `{"symbol":"005930","market":"korea"}`, http.StatusConflict, "already_tracked"},
		{"not in catalog", `{"symbol":"123456","market":"korea"}`, http.StatusNotFound, "not_found"},
		{"unknown market", `{"symbol":"7203","market":"japan"}`, http.StatusBadRequest, "unknown_market"},
		{"missing symbol", `{"symbol":"  ","market":"korea"}`, http.StatusBadRequest, ""},
		{"invalid json", `{"symbol":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestHandleTickerDelete(t *testing.T) {
	srv, a := newTestServer(t)

	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"005930","market":"korea"}`)
	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"000660","market":"korea"}`)
	require.Len(t, a.Watchlist.List(), 2)

	rr := doRequest(t, srv.Handler(), http.MethodDelete, "/api/tickers/korea/005930", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	list := a.Watchlist.List()
	require.Len(t, list, 1)
	assert.Equal(t, "000660", list[0].Symbol)

	rr = doRequest(t, srv.Handler(), http.MethodDelete, "/api/tickers/korea/005930", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, srv.Handler(), http.MethodDelete, "/api/tickers/mars/005930", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, srv.Handler(), http.MethodDelete, "/api/tickers/korea", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/api/tickers/korea/000660", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleTickerDelete_LowercaseUSSymbol(t *testing.T) {
	srv, a := newTestServer(t)

	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"MSFT","market":"us"}`)
	rr := doRequest(t, srv.Handler(), http.MethodDelete, "/api/tickers/us/msft", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, a.Watchlist.List())
}

func TestHandleTickers_AddShortDomesticCode(t *testing.T) {
	srv, a := newTestServer(t)

	rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"660","market":"korea"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, a.Watchlist.List(), 1)
	assert.Equal(t, "000660", a.Watchlist.List()[0].Symbol)

	rr = doRequest(t, srv.Handler(), http.MethodDelete, "/api/tickers/korea/660", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, a.Watchlist.List())
}

func TestHandleTickerOrder(t *testing.T) {
	srv, a := newTestServer(t)

	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"005930","market":"korea"}`)
	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"AAPL","market":"us"}`)
	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"000660","market":"korea"}`)

	rr := doRequest(t, srv.Handler(), http.MethodPut, "/api/tickers/order",
		`[{"symbol":"AAPL","market":"us"},{"symbol":"000660","market":"korea"},{"symbol":"005930","market":"korea"}]`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeTickers(t, rr)
	require.Len(t, body.Tickers, 3)
	assert.Equal(t, "AAPL", body.Tickers[0].Symbol)
	assert.Equal(t, "000660", body.Tickers[1].Symbol)
	assert.Equal(t, "005930", body.Tickers[2].Symbol)
	assert.Equal(t, "AAPL", a.Watchlist.List()[0].Symbol)
}

func TestHandleTickerOrder_Invalid(t *testing.T) {
	srv, a := newTestServer(t)

	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"005930","market":"korea"}`)
	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"AAPL","market":"us"}`)

	rr := doRequest(t, srv.Handler(), http.MethodPut, "/api/tickers/order", `[{"symbol":"AAPL","market":"us"}]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, srv.Handler(), http.MethodPut, "/api/tickers/order",
		`[{"symbol":"AAPL","market":"us"},{"symbol":"005930","market":"moon"}]`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers/order", `[]`)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	assert.Equal(t, "005930", a.Watchlist.List()[0].Symbol)
}

func TestHandleSearch(t *testing.T) {
	srv, _ := newTestServer(t)

	type searchBody struct {
		Results []models.SearchResult `json:"results"`
	}

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/search?market=korea&q=005930", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body searchBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "삼성전자", body.Results[0].Name)

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/api/search?market=korea&q="+"%EC%82%BC%EC%84%B1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body = searchBody{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Results, 10)

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/api/search?market=us&q=aapl", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body = searchBody{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "AAPL", body.Results[0].Symbol)
	assert.Equal(t, models.MarketUS, body.Results[0].Market)

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/api/search?market=korea&q=", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"market":"korea","query":"","results":[]}`, rr.Body.String())

	rr = doRequest(t, srv.Handler(), http.MethodGet, "/api/search?market=asx&q=bhp", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleRefresh_Accepted(t *testing.T) {
	srv, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/refresh", "")
		assert.Equal(t, http.StatusAccepted, rr.Code)
	}

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleStatus(t *testing.T) {
	srv, a := newTestServer(t)
	doRequest(t, srv.Handler(), http.MethodPost, "/api/tickers", `{"symbol":"005930","market":"korea"}`)

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Tickers)
	assert.True(t, body.IsFirstLaunch)
	assert.WithinDuration(t, a.FirstLaunch, body.FirstLaunch, time.Second)
	assert.False(t, body.Scheduler.Refreshing)

	require.Len(t, body.Catalogs, 2)
	assert.Equal(t, models.MarketKorea, body.Catalogs[0].Market)
	assert.Equal(t, 15, body.Catalogs[0].Entries)
	assert.True(t, body.Catalogs[0].Persisted)
	require.NotNil(t, body.Catalogs[0].UpdatedAt)
	assert.Equal(t, models.MarketUS, body.Catalogs[1].Market)
	assert.Equal(t, 20, body.Catalogs[1].Entries)
	assert.False(t, body.Catalogs[1].Persisted)
}

func TestWebSocket_ReceivesEvents(t *testing.T) {
	srv, a := newTestServer(t)
	go a.Hub.Run()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return a.Hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	a.Hub.Publish(models.RefreshEvent{Type: models.EventLoadingStarted, Timestamp: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.RefreshEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, models.EventLoadingStarted, event.Type)
}
