package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/orderdesk/internal/app"
	"github.com/jmehdipour/orderdesk/internal/config"
	"github.com/jmehdipour/orderdesk/internal/logger"
	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users and orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)

		// 2) connect MySQL
		sqlDB, err := app.OpenMySQL(cfg)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		log.Info("seeding demo users")
		if err := seedUsers(sqlDB); err != nil {
			return err
		}

		log.Info("seeding demo orders")
		n, err := seedOrders(sqlDB)
		if err != nil {
			return err
		}

		log.Info("seed completed", zap.Int("orders", n))
		return nil
	},
}

// seedUsers inserts deterministic demo users (idempotent).
func seedUsers(dbx *sqlx.DB) error {
	users := []model.User{
		{Name: "Acme Events", Email: "ops@acme.test", Mobile: "+6591234567", APIKey: "11111111111111111111111111111111", Status: "active", RPS: intptr(20)},
		{Name: "Run Club SG", Email: "hello@runclub.test", Mobile: "+6598765432", APIKey: "22222222222222222222222222222222", Status: "active", RPS: intptr(5)},
		{Name: "Suspended Org", Email: "noreply@suspended.test", APIKey: "44444444444444444444444444444444", Status: "suspended"},
	}

	// idempotent upsert based on email (UNIQUE)
	const q = `
INSERT INTO users
    (name, email, mobile_no, api_key, status, rate_limit_rps)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    mobile_no      = VALUES(mobile_no),
    api_key        = VALUES(api_key),
    status         = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, u := range users {
		if _, err := tx.Exec(q, u.Name, u.Email, nullable(u.Mobile), u.APIKey, u.Status, u.RPS); err != nil {
			return fmt.Errorf("insert user %q: %w", u.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit users: %w", err)
	}
	return nil
}

type seedOrder struct {
	number        string
	types         []model.OrderType
	status        model.OrderStatus
	fulfillment   string
	method        string
	paidAt        *time.Time
	category      int64
	addOns        int64
	donation      int64
	fee           int64
	gst           int64
	gatewayFee    string
	participants  []string
	addOnNames    []string
	refunds       []int64 // completed
	pendingRefund int64
}

// seedOrders writes a small fixed order book covering every export column.
func seedOrders(dbx *sqlx.DB) (int, error) {
	paid := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	orders := []seedOrder{
		{
			number: "ORD-0001", types: []model.OrderType{model.OrderTypeRegistration}, status: model.OrderStatusPaid,
			fulfillment: "fulfilled", method: "card", paidAt: &paid,
			category: 8000, fee: 200, gst: 800, gatewayFee: "2.50",
			participants: []string{"Alice Tan"},
		},
		{
			number: "ORD-0002", types: []model.OrderType{model.OrderTypeRegistration, model.OrderTypeMerchandise}, status: model.OrderStatusPartiallyRefunded,
			fulfillment: "collected", method: "paynow", paidAt: &paid,
			category: 8000, addOns: 2500, fee: 300, gst: 1000, gatewayFee: "1.75",
			participants: []string{"Ben Lim", "Chloe Lim"}, addOnNames: []string{"Race Tee", "Cap"},
			refunds: []int64{2500}, pendingRefund: 1000,
		},
		{
			number: "ORD-0003", types: []model.OrderType{model.OrderTypeDonation}, status: model.OrderStatusPending,
			donation: 5000,
		},
	}

	tx, err := dbx.Beginx()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var userID int64
	if err := tx.Get(&userID, `SELECT id FROM users WHERE email = ?`, "ops@acme.test"); err != nil {
		return 0, fmt.Errorf("lookup seed user: %w", err)
	}
	tierID, err := upsertNamed(tx, "tiers", "Early Bird")
	if err != nil {
		return 0, err
	}
	categoryID, err := upsertNamed(tx, "categories", "10K Run")
	if err != nil {
		return 0, err
	}

	for _, o := range orders {
		if _, err := tx.Exec(`DELETE FROM orders WHERE order_number = ?`, o.number); err != nil {
			return 0, fmt.Errorf("clear order %s: %w", o.number, err)
		}

		subtotal := o.category + o.addOns + o.donation
		var meta []byte
		if o.gatewayFee != "" {
			meta, _ = json.Marshal(map[string]any{"gateway_fee": o.gatewayFee})
		}

		res, err := tx.Exec(`
INSERT INTO orders
    (order_number, user_id, tier_id, category_id, types, status, fulfillment_status, payment_method, paid_at,
     category_price_amount, add_on_amount, donation_amount, subtotal_amount, processing_fee, gst_amount, total_amount, payment_meta)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.number, userID, tierID, categoryID, joinTypes(o.types), o.status, nullable(o.fulfillment), nullable(o.method), o.paidAt,
			o.category, o.addOns, o.donation, subtotal, o.fee, o.gst, subtotal+o.fee+o.gst, nullableBytes(meta),
		)
		if err != nil {
			return 0, fmt.Errorf("insert order %s: %w", o.number, err)
		}
		orderID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("order id %s: %w", o.number, err)
		}

		for _, name := range o.participants {
			if _, err := tx.Exec(`INSERT INTO order_participants (order_id, name) VALUES (?, ?)`, orderID, name); err != nil {
				return 0, fmt.Errorf("insert participant: %w", err)
			}
		}
		for _, name := range o.addOnNames {
			if _, err := tx.Exec(`INSERT INTO order_add_ons (order_id, name) VALUES (?, ?)`, orderID, name); err != nil {
				return 0, fmt.Errorf("insert add-on: %w", err)
			}
		}
		for _, amt := range o.refunds {
			if _, err := tx.Exec(`INSERT INTO refunds (order_id, amount, status) VALUES (?, ?, ?)`, orderID, amt, model.RefundCompleted); err != nil {
				return 0, fmt.Errorf("insert refund: %w", err)
			}
		}
		if o.pendingRefund > 0 {
			if _, err := tx.Exec(`INSERT INTO refunds (order_id, amount, status) VALUES (?, ?, ?)`, orderID, o.pendingRefund, model.RefundPending); err != nil {
				return 0, fmt.Errorf("insert refund: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit orders: %w", err)
	}
	return len(orders), nil
}

func upsertNamed(tx *sqlx.Tx, table, name string) (int64, error) {
	var id int64
	err := tx.Get(&id, `SELECT id FROM `+table+` WHERE name = ? LIMIT 1`, name)
	if err == nil {
		return id, nil
	}
	res, err := tx.Exec(`INSERT INTO `+table+` (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", table, name, err)
	}
	return res.LastInsertId()
}

func joinTypes(types []model.OrderType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func intptr(i int) *int { return &i }
