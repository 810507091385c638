package process

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/slok/comfylaunch/internal/log"
)

// HTTPProberConfig is the configuration of the HTTP liveness prober.
type HTTPProberConfig struct {
	// Host is the probed host, 127.0.0.1 by default.
	Host string
	// Path is the probed path, the backend queue endpoint by default.
	Path    string
	Timeout time.Duration
	Logger  log.Logger
}

func (c *HTTPProberConfig) defaults() error {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Path == "" {
		c.Path = "/queue"
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "process.HTTPProber"})
	return nil
}

// HTTPProber considers a backend alive when its queue endpoint answers 200.
type HTTPProber struct {
	client *resty.Client
	host   string
	path   string
	logger log.Logger
}

// NewHTTPProber returns a new HTTP prober.
func NewHTTPProber(cfg HTTPProberConfig) (*HTTPProber, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HTTPProber{
		client: resty.New().SetTimeout(cfg.Timeout),
		host:   cfg.Host,
		path:   cfg.Path,
		logger: cfg.Logger,
	}, nil
}

// Probe returns true if something answers 200 on the port.
func (p *HTTPProber) Probe(ctx context.Context, port int) bool {
	url := fmt.Sprintf("http://%s:%d%s", p.host, port, p.path)
	resp, err := p.client.R().SetContext(ctx).Get(url)
	if err != nil {
		p.logger.Debugf("Probe %s: %v", url, err)
		return false
	}

	return resp.StatusCode() == http.StatusOK
}
