// Package export builds the orders CSV and records the outcome for polling.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/orderdesk/internal/filter"
	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmehdipour/orderdesk/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultLabel     = "orders"
	DefaultBatchSize = 1000
	DefaultStatusTTL = 24 * time.Hour

	finalizerTimeout = 5 * time.Second
	tokenLength      = 5
)

type OrderSource interface {
	ChunkByID(ctx context.Context, q *filter.Query, size int, fn func([]model.Order) error) error
}

type Encoder interface {
	Write(header []string, rows [][]string) ([]byte, error)
}

type StatusCache interface {
	Put(ctx context.Context, key string, st model.ExportStatus, ttl time.Duration) error
}

type Options struct {
	Label        string
	BatchSize    int
	StatusTTL    time.Duration
	Production   bool
	TenantDomain string
	Location     *time.Location
}

// Result describes a stored export.
type Result struct {
	Path string
	URL  string
	Rows int
}

// OrdersJob exports filtered orders to CSV. One value serves any number of
// requests; it keeps no per-request state.
type OrdersJob struct {
	source  OrderSource
	encoder Encoder
	disk    storage.Disk
	status  StatusCache
	log     *zap.Logger
	opts    Options
	rows    RowFormatter

	now   func() time.Time
	token func(n int) (string, error)
}

func NewOrdersJob(source OrderSource, encoder Encoder, disk storage.Disk, status StatusCache, log *zap.Logger, opts Options) *OrdersJob {
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = DefaultStatusTTL
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &OrdersJob{
		source:  source,
		encoder: encoder,
		disk:    disk,
		status:  status,
		log:     log.With(zap.String("job", "orders_export")),
		opts:    opts,
		rows:    NewRowFormatter(opts.Location),
		now:     time.Now,
		token:   RandomToken,
	}
}

// Handle runs one export. The status record is written before Handle returns
// on every path; a panic is recorded as a failure and then re-raised.
func (j *OrdersJob) Handle(ctx context.Context, req model.ExportRequest) (res Result, err error) {
	log := j.log.With(zap.Int64("requester_id", req.RequesterID), zap.String("export_id", req.ExportID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("orders export panicked", zap.Any("panic", r), zap.Stack("stack"))
			j.writeStatus(ctx, log, req, model.ExportFailedWith(fmt.Errorf("export panicked: %v", r)))
			panic(r)
		}
	}()

	res, err = j.run(ctx, req, log)
	if err == nil {
		if perr := j.status.Put(ctx, j.statusKey(req), model.ExportSucceeded(res.URL), j.opts.StatusTTL); perr != nil {
			err = fmt.Errorf("write export status: %w", perr)
		}
	}
	if err != nil {
		log.Error("orders export failed", zap.Error(err))
		j.writeStatus(ctx, log, req, model.ExportFailedWith(err))
		return res, err
	}

	log.Info("orders export stored", zap.String("path", res.Path), zap.Int("rows", res.Rows))
	return res, nil
}

// Failed is the terminal hook the queue calls once retries are exhausted. It
// overwrites whatever status the last attempt left.
func (j *OrdersJob) Failed(ctx context.Context, req model.ExportRequest, cause error) {
	log := j.log.With(zap.Int64("requester_id", req.RequesterID), zap.String("export_id", req.ExportID))
	log.Error("orders export gave up", zap.Error(cause))
	j.writeStatus(ctx, log, req, model.ExportFailedWith(cause))
}

func (j *OrdersJob) run(ctx context.Context, req model.ExportRequest, log *zap.Logger) (Result, error) {
	f := filter.NewOrderFilter(req.Params, j.opts.Location)
	q, err := f.Build()
	if err != nil {
		return Result{}, fmt.Errorf("build order query: %w", err)
	}

	var rows [][]string
	pages := 0
	err = j.source.ChunkByID(ctx, q, j.opts.BatchSize, func(orders []model.Order) error {
		pages++
		for _, o := range orders {
			rows = append(rows, j.rows.Row(o))
		}
		log.Debug("orders page formatted", zap.Int("page", pages), zap.Int("orders", len(orders)))
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("fetch orders: %w", err)
	}

	content, err := j.encoder.Write(Header, rows)
	if err != nil {
		return Result{}, fmt.Errorf("encode csv: %w", err)
	}

	name, err := j.fileName(f.Param("date_range"))
	if err != nil {
		return Result{}, err
	}
	path := j.path(name)

	if err := j.disk.Put(ctx, path, content, storage.VisibilityPublic); err != nil {
		return Result{}, fmt.Errorf("store csv: %w", err)
	}

	return Result{Path: path, URL: j.disk.URL(path), Rows: len(rows)}, nil
}

// writeStatus records a failure even when ctx is already cancelled.
func (j *OrdersJob) writeStatus(ctx context.Context, log *zap.Logger, req model.ExportRequest, st model.ExportStatus) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizerTimeout)
	defer cancel()

	if err := j.status.Put(wctx, j.statusKey(req), st, j.opts.StatusTTL); err != nil {
		log.Error("write export status", zap.String("status", st.Status.String()), zap.Error(err))
	}
}

func (j *OrdersJob) statusKey(req model.ExportRequest) string {
	return model.ExportStatusKey(req.RequesterID, req.ExportID)
}

// fileName is {label}-{date range or today}-{token}.
func (j *OrdersJob) fileName(dateRange string) (string, error) {
	slug := strings.ReplaceAll(strings.TrimSpace(dateRange), " ", "-")
	if slug == "" {
		slug = j.now().In(j.opts.Location).Format("2006-01-02")
	}

	tok, err := j.token(tokenLength)
	if err != nil {
		return "", fmt.Errorf("file name token: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", j.opts.Label, slug, tok), nil
}

// path is {production|staging}/{tenant domain}/csv/{name}.csv.
func (j *OrdersJob) path(name string) string {
	env := "staging"
	if j.opts.Production {
		env = "production"
	}
	domain := strings.TrimSpace(j.opts.TenantDomain)
	if domain == "" {
		domain = "default"
	}
	return fmt.Sprintf("%s/%s/csv/%s.csv", env, domain, name)
}
