package model

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusPaid              OrderStatus = "paid"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusRefunded          OrderStatus = "refunded"
	OrderStatusPartiallyRefunded OrderStatus = "partially_refunded"
)

func (s OrderStatus) Label() string { return labelOf(string(s)) }

type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentFulfilled   FulfillmentStatus = "fulfilled"
	FulfillmentCollected   FulfillmentStatus = "collected"
)

func (s FulfillmentStatus) Label() string { return labelOf(string(s)) }

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "card"
	PaymentPayNow       PaymentMethod = "paynow"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentGrabPay      PaymentMethod = "grabpay"
)

func (m PaymentMethod) Label() string { return labelOf(string(m)) }

type OrderType string

const (
	OrderTypeRegistration OrderType = "registration"
	OrderTypeMerchandise  OrderType = "merchandise"
	OrderTypeDonation     OrderType = "donation"
)

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
	RefundRejected  RefundStatus = "rejected"
)

var labels = map[string]string{
	"paynow":        "PayNow",
	"grabpay":       "GrabPay",
	"bank_transfer": "Bank Transfer",
}

// labelOf turns a snake_case enum value into its display label.
func labelOf(v string) string {
	if l, ok := labels[v]; ok {
		return l
	}
	parts := strings.Split(v, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

type User struct {
	ID     int64  `db:"id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Mobile string `db:"mobile_no"`
	APIKey string `db:"api_key"`
	Status string `db:"status"`         // active|suspended
	RPS    *int   `db:"rate_limit_rps"` // nullable
}

type Tier struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type Participant struct {
	ID      int64  `db:"id"`
	OrderID int64  `db:"order_id"`
	Name    string `db:"name"`
}

type AddOn struct {
	ID      int64  `db:"id"`
	OrderID int64  `db:"order_id"`
	Name    string `db:"name"`
}

type Refund struct {
	ID      int64        `db:"id"`
	OrderID int64        `db:"order_id"`
	Amount  int64        `db:"amount"` // cents
	Status  RefundStatus `db:"status"`
}

// Order is read-only for the export; every money field is in cents.
type Order struct {
	ID                  int64
	OrderNumber         string
	Types               []OrderType
	Status              OrderStatus
	FulfillmentStatus   *FulfillmentStatus
	PaymentMethod       *PaymentMethod
	PaidAt              *time.Time
	CategoryPriceAmount int64
	AddOnAmount         int64
	DonationAmount      int64
	SubtotalAmount      int64
	ProcessingFee       int64
	GSTAmount           int64
	TotalAmount         int64
	PaymentMeta         map[string]any
	CreatedAt           time.Time

	User         *User
	Tier         *Tier
	Category     *Category
	Participants []Participant
	AddOns       []AddOn
	Refunds      []Refund
}

// TypesLabel joins the order's type labels, e.g. "Registration, Merchandise".
func (o Order) TypesLabel() string {
	out := make([]string, 0, len(o.Types))
	for _, t := range o.Types {
		out = append(out, labelOf(string(t)))
	}
	return strings.Join(out, ", ")
}

// TotalRefundedAmount sums completed refunds only.
func (o Order) TotalRefundedAmount() int64 {
	var sum int64
	for _, r := range o.Refunds {
		if r.Status == RefundCompleted {
			sum += r.Amount
		}
	}
	return sum
}

// ParseOrderTypes splits the comma separated SET column value.
func ParseOrderTypes(raw string) []OrderType {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]OrderType, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, OrderType(p))
		}
	}
	return out
}
