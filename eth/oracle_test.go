package eth

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOracleServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/twaer", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))
		fmt.Fprint(w, `{"rate":"2000000000000000000","publishedAt":1600000000}`)
	})
	mux.HandleFunc("/v1/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rate":"2100000000000000000","publishedAt":1600000100}`)
	})
	mux.HandleFunc("/v1/aum", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"amount":"-5","decimals":18}`)
	})
	return httptest.NewServer(mux)
}

func TestOracleClient(t *testing.T) {
	server := newTestOracleServer(t)
	defer server.Close()
	oracle := NewOracleClient(server.URL+"/", "secret", time.Second)
	ctx := context.Background()

	rate, publishedAt, err := oracle.GetTwaer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", rate.String())
	assert.Equal(t, int64(1600000000), publishedAt.Unix())

	rate, publishedAt, err = oracle.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2100000000000000000", rate.String())
	assert.Equal(t, int64(1600000100), publishedAt.Unix())

	aum, decimals, err := oracle.GetAum(ctx)
	require.NoError(t, err)
	assert.Equal(t, "-5", aum.String())
	assert.Equal(t, uint8(18), decimals)
}

func TestOracleClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/twaer" {
			fmt.Fprint(w, `{"rate":"not a number","publishedAt":0}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	oracle := NewOracleClient(server.URL+"/", "", time.Second)

	_, _, err := oracle.GetTwaer(context.Background())
	assert.Error(t, err)
	_, _, err = oracle.GetLatest(context.Background())
	assert.Error(t, err)
	_, _, err = oracle.GetAum(context.Background())
	assert.Error(t, err)
}

func TestStaticOracle(t *testing.T) {
	now := time.Unix(1600000000, 0)
	oracle := NewStaticOracle(big.NewInt(1), big.NewInt(2), big.NewInt(3), 8)
	oracle.SetTimeNow(func() time.Time { return now })

	rate, publishedAt, err := oracle.GetTwaer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", rate.String())
	assert.Equal(t, now, publishedAt)

	oracle.SetRate(big.NewInt(5))
	oracle.SetPublishedAt(now.Add(-time.Hour))
	rate, publishedAt, err = oracle.GetLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", rate.String())
	assert.Equal(t, now.Add(-time.Hour), publishedAt)

	// returned values are copies
	rate.SetInt64(100)
	rate, _, err = oracle.GetTwaer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", rate.String())

	oracle.SetAum(big.NewInt(-1), 6)
	aum, decimals, err := oracle.GetAum(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "-1", aum.String())
	assert.Equal(t, uint8(6), decimals)
}
