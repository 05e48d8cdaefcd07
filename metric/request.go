package metric

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	pathMetrics = "/metrics"
	// pathUnmatched labels requests that did not match any route
	pathUnmatched = "unmatched"
)

// Prometheus contains the metrics gathered by the API
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
}

// NewPrometheus registers the API request metrics
func NewPrometheus() (*Prometheus, error) {
	reqCnt := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceAPI,
			Name:      "requests_total",
			Help:      "How many HTTP requests processed, partitioned by status code, method and route",
		},
		[]string{"code", "method", "path"},
	)
	if err := prometheus.Register(reqCnt); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		reqCnt = are.ExistingCollector.(*prometheus.CounterVec)
	}
	reqDur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceAPI,
			Name:      "request_duration_seconds",
			Help:      "The HTTP request latencies in seconds",
		},
		[]string{"code", "method", "path"},
	)
	if err := prometheus.Register(reqDur); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		reqDur = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &Prometheus{
		reqCnt: reqCnt,
		reqDur: reqDur,
	}, nil
}

// PrometheusMiddleware returns a gin middleware that measures every request
func PrometheusMiddleware() (gin.HandlerFunc, error) {
	p, err := NewPrometheus()
	if err != nil {
		return nil, err
	}
	return p.Middleware(), nil
}

// Middleware measures the requests by route. Scrapes of the metrics endpoint
// are not measured.
func (p *Prometheus) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == pathMetrics {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		elapsed := float64(time.Since(start)) / float64(time.Second)
		route := c.FullPath()
		if route == "" {
			route = pathUnmatched
		}

		p.reqDur.WithLabelValues(status, c.Request.Method, route).Observe(elapsed)
		p.reqCnt.WithLabelValues(status, c.Request.Method, route).Inc()
	}
}
