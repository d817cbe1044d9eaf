package export

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/shopspring/decimal"
)

// Header is the fixed column set of the orders CSV.
var Header = []string{
	"Order No.",
	"Buyer",
	"Tier Pricing",
	"Order Type",
	"Date of Payment",
	"Payment Method",
	"Status",
	"Fulfillment Status",
	"Registration Amt",
	"Merchandise Amt",
	"Donation Amt",
	"Sub Total",
	"Processing fee",
	"GST",
	"Refund Amt",
	"Total Amt (SGD)",
	"Gateway Fee",
	"Net Amount",
	"No. of Particiapnts",
	"No. of Merchandise",
}

const paidAtLayout = "2006/1/2 15:04"

var hundred = decimal.NewFromInt(100)

// FormatAmount converts cents to dollars exactly.
func FormatAmount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatDeduction renders money leaving the organiser (refunds, gateway fees)
// as a non-positive amount.
func FormatDeduction(cents int64) decimal.Decimal {
	if cents <= 0 {
		return decimal.Zero
	}
	return FormatAmount(cents).Neg()
}

// GatewayFeeCents reads payment_meta.gateway_fee, given in dollars as a string
// or number, and truncates it toward zero to cents. Anything missing or
// unparseable is 0. Negative fees are returned as is.
func GatewayFeeCents(meta map[string]any) int64 {
	raw, ok := meta["gateway_fee"]
	if !ok || raw == nil {
		return 0
	}

	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	default:
		return 0
	}
	if err != nil {
		return 0
	}

	return d.Mul(hundred).IntPart()
}

// RowFormatter renders orders as CSV rows; dates use loc.
type RowFormatter struct {
	loc *time.Location
}

func NewRowFormatter(loc *time.Location) RowFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return RowFormatter{loc: loc}
}

func (f RowFormatter) Row(o model.Order) []string {
	feeCents := GatewayFeeCents(o.PaymentMeta)
	netCents := o.TotalAmount - feeCents

	return []string{
		o.OrderNumber,
		buyerEmail(o),
		tierName(o),
		o.TypesLabel(),
		f.paidAt(o),
		paymentMethodLabel(o),
		o.Status.Label(),
		fulfillmentLabel(o),
		FormatAmount(o.CategoryPriceAmount).String(),
		FormatAmount(o.AddOnAmount).String(),
		FormatAmount(o.DonationAmount).String(),
		FormatAmount(o.SubtotalAmount).String(),
		FormatAmount(o.ProcessingFee).String(),
		FormatAmount(o.GSTAmount).String(),
		FormatDeduction(o.TotalRefundedAmount()).String(),
		FormatAmount(o.TotalAmount).String(),
		FormatDeduction(feeCents).String(),
		FormatAmount(netCents).String(),
		strconv.Itoa(len(o.Participants)),
		strconv.Itoa(len(o.AddOns)),
	}
}

func (f RowFormatter) paidAt(o model.Order) string {
	if o.PaidAt == nil || o.PaidAt.IsZero() {
		return ""
	}
	return o.PaidAt.In(f.loc).Format(paidAtLayout)
}

func buyerEmail(o model.Order) string {
	if o.User == nil {
		return ""
	}
	return o.User.Email
}

func tierName(o model.Order) string {
	if o.Tier == nil {
		return ""
	}
	return o.Tier.Name
}

func paymentMethodLabel(o model.Order) string {
	if o.PaymentMethod == nil {
		return ""
	}
	return o.PaymentMethod.Label()
}

func fulfillmentLabel(o model.Order) string {
	if o.FulfillmentStatus == nil {
		return ""
	}
	return o.FulfillmentStatus.Label()
}
