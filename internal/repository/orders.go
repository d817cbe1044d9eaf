package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/orderdesk/internal/filter"
	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmoiron/sqlx"
)

const DefaultChunkSize = 1000

// OrdersRepository pages through filtered orders with their relations loaded.
type OrdersRepository interface {
	// ChunkByID calls fn with consecutive pages of at most size orders. Pages are
	// fetched with a keyset cursor so memory stays bounded by one page.
	ChunkByID(ctx context.Context, q *filter.Query, size int, fn func([]model.Order) error) error
}

type OrdersRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrdersRepository(db *sqlx.DB) *OrdersRepositoryImpl {
	return &OrdersRepositoryImpl{db: db}
}

var _ OrdersRepository = (*OrdersRepositoryImpl)(nil)

// field path -> column
var orderSearchColumns = map[string]string{
	"order_number": "o.order_number",
	"user.name":    "u.name",
	"user.email":   "u.email",
}

var orderSortColumns = map[string]string{
	"id":           "o.id",
	"order_number": "o.order_number",
	"created_at":   "o.created_at",
	"total_amount": "o.total_amount",
}

const selectOrders = `
	SELECT o.id, o.order_number, o.types, o.status, o.fulfillment_status,
	       o.payment_method, o.paid_at, o.category_price_amount, o.add_on_amount,
	       o.donation_amount, o.subtotal_amount, o.processing_fee, o.gst_amount,
	       o.total_amount, o.payment_meta, o.created_at,
	       u.id AS user_id, u.name AS user_name, u.email AS user_email,
	       t.id AS tier_id, t.name AS tier_name,
	       c.id AS category_id, c.name AS category_name
	  FROM orders o
	  LEFT JOIN users u      ON u.id = o.user_id
	  LEFT JOIN tiers t      ON t.id = o.tier_id
	  LEFT JOIN categories c ON c.id = o.category_id
`

type orderRow struct {
	ID                  int64          `db:"id"`
	OrderNumber         string         `db:"order_number"`
	Types               string         `db:"types"`
	Status              string         `db:"status"`
	FulfillmentStatus   sql.NullString `db:"fulfillment_status"`
	PaymentMethod       sql.NullString `db:"payment_method"`
	PaidAt              sql.NullTime   `db:"paid_at"`
	CategoryPriceAmount int64          `db:"category_price_amount"`
	AddOnAmount         int64          `db:"add_on_amount"`
	DonationAmount      int64          `db:"donation_amount"`
	SubtotalAmount      int64          `db:"subtotal_amount"`
	ProcessingFee       int64          `db:"processing_fee"`
	GSTAmount           int64          `db:"gst_amount"`
	TotalAmount         int64          `db:"total_amount"`
	PaymentMeta         []byte         `db:"payment_meta"`
	CreatedAt           time.Time      `db:"created_at"`
	UserID              sql.NullInt64  `db:"user_id"`
	UserName            sql.NullString `db:"user_name"`
	UserEmail           sql.NullString `db:"user_email"`
	TierID              sql.NullInt64  `db:"tier_id"`
	TierName            sql.NullString `db:"tier_name"`
	CategoryID          sql.NullInt64  `db:"category_id"`
	CategoryName        sql.NullString `db:"category_name"`
}

func (r orderRow) toModel() model.Order {
	o := model.Order{
		ID:                  r.ID,
		OrderNumber:         r.OrderNumber,
		Types:               model.ParseOrderTypes(r.Types),
		Status:              model.OrderStatus(r.Status),
		CategoryPriceAmount: r.CategoryPriceAmount,
		AddOnAmount:         r.AddOnAmount,
		DonationAmount:      r.DonationAmount,
		SubtotalAmount:      r.SubtotalAmount,
		ProcessingFee:       r.ProcessingFee,
		GSTAmount:           r.GSTAmount,
		TotalAmount:         r.TotalAmount,
		CreatedAt:           r.CreatedAt,
	}
	if r.FulfillmentStatus.Valid && r.FulfillmentStatus.String != "" {
		fs := model.FulfillmentStatus(r.FulfillmentStatus.String)
		o.FulfillmentStatus = &fs
	}
	if r.PaymentMethod.Valid && r.PaymentMethod.String != "" {
		pm := model.PaymentMethod(r.PaymentMethod.String)
		o.PaymentMethod = &pm
	}
	if r.PaidAt.Valid {
		t := r.PaidAt.Time
		o.PaidAt = &t
	}
	if len(r.PaymentMeta) > 0 {
		// numbers stay json.Number so fees keep their exact decimal text;
		// malformed meta is treated like no meta
		dec := json.NewDecoder(bytes.NewReader(r.PaymentMeta))
		dec.UseNumber()
		if err := dec.Decode(&o.PaymentMeta); err != nil {
			o.PaymentMeta = nil
		}
	}
	if r.UserID.Valid {
		o.User = &model.User{ID: r.UserID.Int64, Name: r.UserName.String, Email: r.UserEmail.String}
	}
	if r.TierID.Valid {
		o.Tier = &model.Tier{ID: r.TierID.Int64, Name: r.TierName.String}
	}
	if r.CategoryID.Valid {
		o.Category = &model.Category{ID: r.CategoryID.Int64, Name: r.CategoryName.String}
	}
	return o
}

func (r orderRow) sortValue(field string) any {
	switch field {
	case "order_number":
		return r.OrderNumber
	case "created_at":
		return r.CreatedAt
	case "total_amount":
		return r.TotalAmount
	default:
		return r.ID
	}
}

type keyset struct {
	value any
	id    int64
}

func (r *OrdersRepositoryImpl) ChunkByID(ctx context.Context, q *filter.Query, size int, fn func([]model.Order) error) error {
	if q == nil {
		q = (&filter.Query{}).Latest()
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	var cursor *keyset
	for {
		query, args := buildOrdersPage(q, cursor, size)

		var rows []orderRow
		if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
			return fmt.Errorf("select orders page: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		orders := make([]model.Order, len(rows))
		for i, row := range rows {
			orders[i] = row.toModel()
		}
		if err := r.loadRelations(ctx, orders); err != nil {
			return err
		}
		if err := fn(orders); err != nil {
			return err
		}

		if len(rows) < size {
			return nil
		}
		last := rows[len(rows)-1]
		cursor = &keyset{value: last.sortValue(q.SortField), id: last.ID}
	}
}

// buildOrdersPage renders one keyset page for q.
func buildOrdersPage(q *filter.Query, cursor *keyset, size int) (string, []any) {
	col, ok := orderSortColumns[q.SortField]
	if !ok {
		col = "o.id"
	}
	op, dir := ">", "ASC"
	if q.SortDesc {
		op, dir = "<", "DESC"
	}

	var conds []string
	var args []any

	if q.From != nil {
		conds = append(conds, "o.created_at >= ?")
		args = append(args, *q.From)
	}
	if q.To != nil {
		conds = append(conds, "o.created_at < ?")
		args = append(args, *q.To)
	}
	if q.Search != "" {
		like := "%" + escapeLike(q.Search) + "%"
		var ors []string
		for _, f := range q.SearchFields {
			c, ok := orderSearchColumns[f]
			if !ok {
				continue
			}
			ors = append(ors, c+" LIKE ?")
			args = append(args, like)
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}
	if cursor != nil {
		if col == "o.id" {
			conds = append(conds, "o.id "+op+" ?")
			args = append(args, cursor.id)
		} else {
			conds = append(conds, fmt.Sprintf("(%s %s ? OR (%s = ? AND o.id %s ?))", col, op, col, op))
			args = append(args, cursor.value, cursor.value, cursor.id)
		}
	}

	var sb strings.Builder
	sb.WriteString(selectOrders)
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	if col == "o.id" {
		fmt.Fprintf(&sb, " ORDER BY o.id %s", dir)
	} else {
		fmt.Fprintf(&sb, " ORDER BY %s %s, o.id %s", col, dir, dir)
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, size)

	return sb.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// loadRelations eager-loads participants, add-ons and completed refunds for one page.
func (r *OrdersRepositoryImpl) loadRelations(ctx context.Context, orders []model.Order) error {
	ids := make([]int64, len(orders))
	idx := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		idx[o.ID] = i
	}

	var participants []model.Participant
	if err := r.selectIn(ctx, &participants,
		`SELECT id, order_id, name FROM order_participants WHERE order_id IN (?) ORDER BY id`, ids); err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	for _, p := range participants {
		if i, ok := idx[p.OrderID]; ok {
			orders[i].Participants = append(orders[i].Participants, p)
		}
	}

	var addOns []model.AddOn
	if err := r.selectIn(ctx, &addOns,
		`SELECT id, order_id, name FROM order_add_ons WHERE order_id IN (?) ORDER BY id`, ids); err != nil {
		return fmt.Errorf("load add-ons: %w", err)
	}
	for _, a := range addOns {
		if i, ok := idx[a.OrderID]; ok {
			orders[i].AddOns = append(orders[i].AddOns, a)
		}
	}

	var refunds []model.Refund
	if err := r.selectIn(ctx, &refunds,
		`SELECT id, order_id, amount, status FROM refunds WHERE status = ? AND order_id IN (?) ORDER BY id`,
		model.RefundCompleted, ids); err != nil {
		return fmt.Errorf("load refunds: %w", err)
	}
	for _, rf := range refunds {
		if i, ok := idx[rf.OrderID]; ok {
			orders[i].Refunds = append(orders[i].Refunds, rf)
		}
	}

	return nil
}

func (r *OrdersRepositoryImpl) selectIn(ctx context.Context, dest any, base string, args ...any) error {
	query, inArgs, err := sqlx.In(base, args...)
	if err != nil {
		return err
	}
	return r.db.SelectContext(ctx, dest, r.db.Rebind(query), inArgs...)
}
