package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/meshnode/discovery"
	"github.com/kbukum/meshnode/httpclient"
	"github.com/kbukum/meshnode/logger"
	"github.com/kbukum/meshnode/observability"
	"github.com/kbukum/meshnode/resilience"
)

// HeaderRequestID carries the inbound request ID to the downstream instance.
const HeaderRequestID = "X-Request-ID"

// Resolver picks one instance of a logical service. *discovery.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, name string) (discovery.ServiceInstance, error)
}

// Result is a successful call.
type Result struct {
	Body       []byte
	StatusCode int
	Instance   discovery.ServiceInstance
	Duration   time.Duration
}

// Dispatcher resolves a service name and calls the chosen instance. It is
// safe for concurrent use and shares one pooled transport across calls.
type Dispatcher struct {
	cfg      Config
	resolver Resolver
	client   *httpclient.Client
	metrics  *observability.Metrics
	log      *logger.Logger
}

// New creates a Dispatcher. metrics may be nil.
func New(cfg Config, resolver Resolver, metrics *observability.Metrics, log *logger.Logger) (*Dispatcher, error) {
	if resolver == nil {
		return nil, errors.New("dispatch: resolver is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := httpclient.New(httpclient.Config{
		Timeout:             cfg.Timeout,
		DialTimeout:         cfg.DialTimeout,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{
		cfg:      cfg,
		resolver: resolver,
		client:   client,
		metrics:  metrics,
		log:      log.WithComponent("dispatch"),
	}, nil
}

// Close releases pooled connections.
func (d *Dispatcher) Close() {
	d.client.Close()
}

// Call resolves name and sends one method request to path on the chosen
// instance. With Config.Retry set, timeouts and connection failures are
// retried, each attempt resolving again.
func (d *Dispatcher) Call(ctx context.Context, name, path, method string) (*Result, error) {
	if d.cfg.Retry == nil {
		return d.attempt(ctx, name, path, method)
	}

	return resilience.Do(ctx, *d.cfg.Retry,
		func(ctx context.Context, _ resilience.Attempt) (*Result, error) {
			return d.attempt(ctx, name, path, method)
		},
		resilience.When(func(err error) bool {
			var ce *CallError
			return errors.As(err, &ce) && ce.Transient()
		}),
		resilience.Notify(func(attempt int, err error, wait time.Duration) {
			d.log.WithContext(ctx).Warn("Retrying call", logger.Fields(
				logger.FieldService, name,
				"attempt", attempt,
				"backoff_ms", wait.Milliseconds(),
				logger.FieldError, err.Error(),
			))
		}),
	)
}

func (d *Dispatcher) attempt(ctx context.Context, name, path, method string) (*Result, error) {
	if method == "" {
		method = http.MethodGet
	}
	requestID := logger.RequestIDFromContext(ctx)
	ctx, call := observability.StartCall(ctx, name, method, path, requestID, d.metrics)
	log := d.log.WithContext(ctx)

	inst, err := d.resolver.Resolve(ctx, name)
	if err != nil {
		re := &ResolveError{Service: name, Err: err}
		call.Failed(ctx, re.kind(), 0, re)
		log.Warn("Resolve failed", logger.Fields(
			logger.FieldService, name,
			logger.FieldError, err.Error(),
		))
		return nil, re
	}
	call.Routed(inst.HostPort())

	req := httpclient.Request{
		Method: method,
		URL:    inst.BaseURL() + "/" + strings.TrimLeft(path, "/"),
	}
	if requestID != "" {
		req.Headers = map[string]string{HeaderRequestID: requestID}
	}

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		err = fromTransport(name, inst, err)
		kind, status := "request_failed", 0
		var ce *CallError
		if errors.As(err, &ce) {
			kind, status = ce.Kind.String(), ce.StatusCode
		}
		call.Failed(ctx, kind, status, err)
		log.Warn("Call failed", logger.Fields(
			logger.FieldService, name,
			logger.FieldInstance, inst.ID,
			"kind", kind,
			logger.FieldDuration, call.Elapsed().Milliseconds(),
			logger.FieldError, err.Error(),
		))
		return nil, err
	}

	res := &Result{
		Body:       resp.Body,
		StatusCode: resp.StatusCode,
		Instance:   inst,
		Duration:   call.Elapsed(),
	}
	call.Succeeded(ctx, resp.StatusCode)
	log.Debug("Call completed", logger.Fields(
		logger.FieldService, name,
		logger.FieldInstance, inst.ID,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
	return res, nil
}
