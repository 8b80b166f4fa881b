package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

const instrumentationName = "github.com/xenking/kart-storefront/internal/domain/checkout"

// Cart is the part of the cart store the workflow reads and clears.
type Cart interface {
	Lines() []cart.Line
	Clear(ctx context.Context) error
}

// Config holds non-dependency configuration for the Service.
type Config struct {
	// InvoicePrefix is prepended to the sequence number. Defaults to
	// invoice.DefaultPrefix.
	InvoicePrefix  string
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

type metrics struct {
	invoices      metric.Int64Counter
	stepFailures  metric.Int64Counter
	stockFailures metric.Int64Counter
}

// Service runs the cart-to-invoice workflow against the remote store.
//
// Concurrent Checkout calls are not serialized: two calls may read the same
// sequence number and derive the same invoice number, and stock is debited by
// overwriting a freshly read copy, so the last write wins.
type Service struct {
	cart     Cart
	products product.Repository
	invoices invoice.Repository
	config   invoice.ConfigRepository

	prefix  string
	now     func() time.Time
	tracer  trace.Tracer
	metrics metrics
}

// NewService creates a checkout Service with the required dependencies.
func NewService(
	cfg Config,
	c Cart,
	products product.Repository,
	invoices invoice.Repository,
	config invoice.ConfigRepository,
) (*Service, error) {
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = invoice.DefaultPrefix
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	var (
		m   metrics
		err error
	)
	if m.invoices, err = meter.Int64Counter("storefront.checkout.invoices",
		metric.WithDescription("Invoices submitted by completed checkouts"),
	); err != nil {
		return nil, errors.Wrap(err, "invoices counter")
	}
	if m.stepFailures, err = meter.Int64Counter("storefront.checkout.failures",
		metric.WithDescription("Checkouts halted by a failed step"),
	); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	if m.stockFailures, err = meter.Int64Counter("storefront.checkout.stock_debit_failures",
		metric.WithDescription("Cart lines whose stock could not be debited"),
	); err != nil {
		return nil, errors.Wrap(err, "stock failures counter")
	}

	return &Service{
		cart:     c,
		products: products,
		invoices: invoices,
		config:   config,
		prefix:   cfg.InvoicePrefix,
		now:      time.Now,
		tracer:   cfg.TracerProvider.Tracer(instrumentationName),
		metrics:  m,
	}, nil
}

// Quote prices the current cart with a freshly fetched tax percentage.
func (s *Service) Quote(ctx context.Context) (pricing.Totals, error) {
	cfg, err := s.config.GetTaxConfig(ctx)
	if err != nil {
		return pricing.Totals{}, errors.Wrap(err, "get tax config")
	}
	return pricing.Compute(s.cart.Lines(), cfg.TaxPercent), nil
}

// Checkout submits the cart as an invoice with the requested status.
//
// Validation failures return a nil Result. A failed step returns the Result
// so far together with a *StepError; steps that already completed are not
// undone. Line and stock errors do not fail the checkout: they are collected
// in the Result and the workflow still advances the sequence and clears the
// cart.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	res := &Result{
		ID:     uuid.NewString(),
		Status: req.Status,
		State:  StateIdle,
	}
	ctx = zctx.With(ctx, zap.String("checkout_id", res.ID))
	lg := zctx.From(ctx)

	// Pricing: the tax rate and sequence number are read once, here, and used
	// for every later step.
	var cfg *invoice.TaxConfig
	if err := s.step(ctx, res, StatePricing, func(ctx context.Context) error {
		var err error
		cfg, err = s.config.GetTaxConfig(ctx)
		if err != nil {
			return errors.Wrap(err, "get tax config")
		}
		res.Totals = pricing.Compute(lines, cfg.TaxPercent)
		res.InvoiceNumber = invoice.Number(s.prefix, cfg.NextSequence)
		return nil
	}); err != nil {
		return res, err
	}
	lg = lg.With(zap.String("invoice", res.InvoiceNumber))

	if err := s.step(ctx, res, StateCreatingHeader, func(ctx context.Context) error {
		return s.invoices.CreateHeader(ctx, &invoice.Header{
			Number:       res.InvoiceNumber,
			CustomerID:   req.Customer.ID,
			CustomerName: req.Customer.Name,
			Email:        req.Contact.Email,
			Address:      req.Contact.Address,
			Phone:        req.Contact.Phone,
			IssuedAt:     s.now().UTC(),
			Total:        res.Totals.Total,
			Status:       req.Status,
		})
	}); err != nil {
		return res, err
	}

	if err := s.step(ctx, res, StateCreatingLines, func(ctx context.Context) error {
		s.createLines(ctx, res, lines)
		return nil
	}); err != nil {
		return res, err
	}

	if req.Status == invoice.StatusPaid {
		if err := s.step(ctx, res, StateDebitingStock, func(ctx context.Context) error {
			s.debitStock(ctx, res, lines)
			return nil
		}); err != nil {
			return res, err
		}
	}

	// The sequence advances even when lines or stock debits failed above.
	if err := s.step(ctx, res, StateAdvancingSequence, func(ctx context.Context) error {
		next := *cfg
		next.NextSequence = cfg.NextSequence + 1
		return s.config.UpdateTaxConfig(ctx, &next)
	}); err != nil {
		return res, err
	}

	if err := s.step(ctx, res, StateCleared, s.cart.Clear); err != nil {
		return res, err
	}

	s.metrics.invoices.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", req.Status.String()),
		attribute.Bool("partial", res.Partial()),
	))
	lg.Info("Checkout completed",
		zap.Stringer("status", req.Status),
		zap.String("total", res.Totals.Total.String()),
		zap.Int("lines_written", res.LinesWritten),
		zap.Int("line_errors", len(res.LineErrors)),
		zap.Int("stock_errors", len(res.StockErrors)),
	)
	return res, nil
}

// step runs fn as the given state inside a span. On error the result moves to
// StateFailed and the error is returned as a *StepError.
func (s *Service) step(ctx context.Context, res *Result, state State, fn func(context.Context) error) error {
	res.State = state

	ctx, span := s.tracer.Start(ctx, "checkout."+state.String())
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", state.String())))
		zctx.From(ctx).Error("Checkout step failed",
			zap.Stringer("step", state),
			zap.String("invoice", res.InvoiceNumber),
			zap.Error(err),
		)
		res.State = StateFailed
		return &StepError{State: state, Err: err}
	}
	return nil
}

// createLines writes one invoice line per cart line, sequentially. The first
// failure stops the remaining writes; lines already written stay.
func (s *Service) createLines(ctx context.Context, res *Result, lines []cart.Line) {
	for _, l := range lines {
		err := s.invoices.CreateLine(ctx, &invoice.Line{
			InvoiceNumber: res.InvoiceNumber,
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			Subtotal:      l.Subtotal(),
		})
		if err != nil {
			zctx.From(ctx).Error("Create invoice line failed",
				zap.String("invoice", res.InvoiceNumber),
				zap.Int64("product_id", l.ProductID),
				zap.Error(err),
			)
			res.LineErrors = append(res.LineErrors, &LineError{ProductID: l.ProductID, Err: err})
			return
		}
		res.LinesWritten++
	}
}

// debitStock re-reads each product and writes back its stock minus the
// requested quantity. Every line is attempted; failures are collected.
func (s *Service) debitStock(ctx context.Context, res *Result, lines []cart.Line) {
	lg := zctx.From(ctx)

	for _, l := range lines {
		stockErr := s.debitLine(ctx, l)
		if stockErr == nil {
			res.Debited = append(res.Debited, l.ProductID)
			continue
		}

		s.metrics.stockFailures.Add(ctx, 1)
		lg.Warn("Stock debit failed",
			zap.Int64("product_id", l.ProductID),
			zap.Int("requested", l.Quantity),
			zap.Error(stockErr),
		)
		res.StockErrors = append(res.StockErrors, stockErr)
	}
}

func (s *Service) debitLine(ctx context.Context, l cart.Line) *StockError {
	p, err := s.products.GetByID(ctx, l.ProductID)
	if err != nil {
		return &StockError{
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Requested:   l.Quantity,
			Err:         errors.Wrap(err, "fetch product"),
		}
	}

	if p.Stock < l.Quantity {
		return &StockError{
			ProductID:   l.ProductID,
			ProductName: p.Name,
			Requested:   l.Quantity,
			Available:   p.Stock,
			Err:         ErrInsufficientStock,
		}
	}

	updated := *p
	updated.Stock = p.Stock - l.Quantity
	if err := s.products.Update(ctx, &updated); err != nil {
		return &StockError{
			ProductID:   l.ProductID,
			ProductName: p.Name,
			Requested:   l.Quantity,
			Available:   p.Stock,
			Err:         errors.Wrap(err, "update product"),
		}
	}
	return nil
}
