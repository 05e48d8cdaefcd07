package eth

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/dghubble/sling"
	"github.com/hermeznetwork/tracerr"
	"github.com/vaultbridge/vaultbridge-node/metric"
)

const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 2 * time.Second
	apiKeyHeader           = "X-API-Key"
)

type rateResponse struct {
	Rate        string `json:"rate"`
	PublishedAt int64  `json:"publishedAt"`
}

type aumResponse struct {
	Amount   string `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// OracleClient is an ExchangeRateOracle served over HTTP
type OracleClient struct {
	client *sling.Sling
	apiKey string
}

// NewOracleClient creates an OracleClient for the oracle at baseURL
func NewOracleClient(baseURL, apiKey string, timeout time.Duration) *OracleClient {
	tr := &http.Transport{
		MaxIdleConns:       defaultMaxIdleConns,
		IdleConnTimeout:    defaultIdleConnTimeout,
		DisableCompression: true,
	}
	httpClient := &http.Client{Transport: tr, Timeout: timeout}
	return &OracleClient{
		client: sling.New().Base(baseURL).Client(httpClient),
		apiKey: apiKey,
	}
}

func (o *OracleClient) get(ctx context.Context, path string, resBody interface{}) error {
	defer metric.MeasureDuration(metric.OracleRequestDuration, time.Now(), path)
	s := o.client.New().Get(path)
	if o.apiKey != "" {
		s = s.Set(apiKeyHeader, o.apiKey)
	}
	req, err := s.Request()
	if err != nil {
		return tracerr.Wrap(err)
	}
	res, err := o.client.Do(req.WithContext(ctx), resBody, nil)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if res.StatusCode != http.StatusOK {
		return tracerr.Wrap(fmt.Errorf("oracle %v: http response is %v", path, res.StatusCode))
	}
	return nil
}

func (o *OracleClient) getRate(ctx context.Context, path string) (*big.Int, time.Time, error) {
	var resBody rateResponse
	if err := o.get(ctx, path, &resBody); err != nil {
		return nil, time.Time{}, tracerr.Wrap(err)
	}
	rate, ok := new(big.Int).SetString(resBody.Rate, 10)
	if !ok {
		return nil, time.Time{}, tracerr.Wrap(fmt.Errorf("oracle %v: invalid rate %q", path, resBody.Rate))
	}
	return rate, time.Unix(resBody.PublishedAt, 0), nil
}

// GetTwaer retrieves the time weighted average exchange rate
func (o *OracleClient) GetTwaer(ctx context.Context) (*big.Int, time.Time, error) {
	return o.getRate(ctx, "v1/twaer")
}

// GetLatest retrieves the latest exchange rate
func (o *OracleClient) GetLatest(ctx context.Context) (*big.Int, time.Time, error) {
	return o.getRate(ctx, "v1/latest")
}

// GetAum retrieves the assets under management
func (o *OracleClient) GetAum(ctx context.Context) (*big.Int, uint8, error) {
	var resBody aumResponse
	if err := o.get(ctx, "v1/aum", &resBody); err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	amount, ok := new(big.Int).SetString(resBody.Amount, 10)
	if !ok {
		return nil, 0, tracerr.Wrap(fmt.Errorf("oracle v1/aum: invalid amount %q", resBody.Amount))
	}
	return amount, resBody.Decimals, nil
}

// StaticOracle is an ExchangeRateOracle serving values set in process. It is
// used for local deployments and tests. Unless a publish time is set, every
// observation is reported as published now.
type StaticOracle struct {
	rw          sync.RWMutex
	twaer       *big.Int
	latest      *big.Int
	publishedAt time.Time
	aum         *big.Int
	aumDecimals uint8
	timeNow     func() time.Time
}

// NewStaticOracle creates a StaticOracle
func NewStaticOracle(twaer, latest, aum *big.Int, aumDecimals uint8) *StaticOracle {
	return &StaticOracle{
		twaer:       new(big.Int).Set(twaer),
		latest:      new(big.Int).Set(latest),
		aum:         new(big.Int).Set(aum),
		aumDecimals: aumDecimals,
		timeNow:     time.Now,
	}
}

// SetTimeNow replaces the clock used for the publish time
func (o *StaticOracle) SetTimeNow(timeNow func() time.Time) {
	o.rw.Lock()
	defer o.rw.Unlock()
	o.timeNow = timeNow
}

// SetRate sets both the time weighted and the latest rate
func (o *StaticOracle) SetRate(rate *big.Int) {
	o.rw.Lock()
	defer o.rw.Unlock()
	o.twaer = new(big.Int).Set(rate)
	o.latest = new(big.Int).Set(rate)
}

// SetPublishedAt fixes the publish time. A zero time reports every
// observation as published now.
func (o *StaticOracle) SetPublishedAt(publishedAt time.Time) {
	o.rw.Lock()
	defer o.rw.Unlock()
	o.publishedAt = publishedAt
}

// SetAum sets the assets under management
func (o *StaticOracle) SetAum(aum *big.Int, decimals uint8) {
	o.rw.Lock()
	defer o.rw.Unlock()
	o.aum = new(big.Int).Set(aum)
	o.aumDecimals = decimals
}

func (o *StaticOracle) published() time.Time {
	if o.publishedAt.IsZero() {
		return o.timeNow()
	}
	return o.publishedAt
}

// GetTwaer returns the time weighted average exchange rate
func (o *StaticOracle) GetTwaer(ctx context.Context) (*big.Int, time.Time, error) {
	o.rw.RLock()
	defer o.rw.RUnlock()
	return new(big.Int).Set(o.twaer), o.published(), nil
}

// GetLatest returns the latest exchange rate
func (o *StaticOracle) GetLatest(ctx context.Context) (*big.Int, time.Time, error) {
	o.rw.RLock()
	defer o.rw.RUnlock()
	return new(big.Int).Set(o.latest), o.published(), nil
}

// GetAum returns the assets under management
func (o *StaticOracle) GetAum(ctx context.Context) (*big.Int, uint8, error) {
	o.rw.RLock()
	defer o.rw.RUnlock()
	return new(big.Int).Set(o.aum), o.aumDecimals, nil
}
