package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	jsoncodec "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/jsoncodec"
	loggingpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/logging"
	srvpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/srv"
)

// Logging logs every on-phase invocation with its outcome and duration. The
// request payload is included at debug level only.
func Logging(log loggingpkg.ServiceLogger) srvpkg.Middleware {
	return func(next srvpkg.Next) srvpkg.Next {
		return func(ctx context.Context, req *srvpkg.Request) (any, error) {
			fields := loggingpkg.LogFields{
				"request_id": req.ID,
				"event":      string(req.Event),
			}
			if req.Entity != nil {
				fields["entity"] = req.Entity.QualifiedName()
			}
			if payload, err := jsoncodec.Marshal(req.Data); err == nil {
				log.Debug("Processing request", loggingpkg.LogFields{
					"request_id": req.ID,
					"payload":    string(payload),
				})
			}

			start := time.Now()
			result, err := next(ctx, req)
			fields["duration_ms"] = time.Since(start).Milliseconds()

			if err != nil {
				log.Error("Request failed", err, fields)
				return result, err
			}
			log.Info("Request processed", fields)
			return result, nil
		}
	}
}

// Tracer wraps the on phase in an OpenTelemetry span.
func Tracer() srvpkg.Middleware {
	return func(next srvpkg.Next) srvpkg.Next {
		return func(ctx context.Context, req *srvpkg.Request) (any, error) {
			attrs := []attribute.KeyValue{
				attribute.String("request.id", req.ID),
				attribute.String("request.event", string(req.Event)),
			}
			if req.Entity != nil {
				attrs = append(attrs, attribute.String("request.entity", req.Entity.QualifiedName()))
			}

			tracer := otel.Tracer("dispatcher-tracer")
			ctx, span := tracer.Start(ctx, "ProcessRequest", trace.WithAttributes(attrs...))
			defer span.End()

			result, err := next(ctx, req)
			if err != nil {
				span.RecordError(err)
			}
			return result, err
		}
	}
}

// Metrics records request counts and durations per event/entity pair. A nil
// registerer falls back to prometheus.DefaultRegisterer; registering the
// same collectors twice reuses the existing ones.
func Metrics(reg prometheus.Registerer, namespace string) srvpkg.Middleware {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "dispatcher"
	}

	labels := []string{"event", "entity"}
	requests := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Requests processed by the on phase.",
	}, labels))
	failures := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_failures_total",
		Help:      "Requests whose on phase returned an error.",
	}, labels))
	durations := registerHistogram(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "On-phase processing duration.",
		Buckets:   prometheus.DefBuckets,
	}, labels))

	return func(next srvpkg.Next) srvpkg.Next {
		return func(ctx context.Context, req *srvpkg.Request) (any, error) {
			entity := ""
			if req.Entity != nil {
				entity = req.Entity.QualifiedName()
			}
			event := string(req.Event)

			start := time.Now()
			result, err := next(ctx, req)
			durations.WithLabelValues(event, entity).Observe(time.Since(start).Seconds())

			requests.WithLabelValues(event, entity).Inc()
			if err != nil {
				failures.WithLabelValues(event, entity).Inc()
			}
			return result, err
		}
	}
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		panic(err)
	}
	return h
}
