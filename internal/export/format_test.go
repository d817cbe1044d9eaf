package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100", FormatAmount(10000).String())
	assert.Equal(t, "97.5", FormatAmount(9750).String())
	assert.Equal(t, "0.01", FormatAmount(1).String())
	assert.Equal(t, "0", FormatAmount(0).String())
}

func TestFormatDeduction(t *testing.T) {
	assert.Equal(t, "-2.5", FormatDeduction(250).String())
	assert.Equal(t, "0", FormatDeduction(0).String())
	assert.Equal(t, "0", FormatDeduction(-100).String())
}

func TestGatewayFeeCents(t *testing.T) {
	cases := []struct {
		name string
		meta map[string]any
		want int64
	}{
		{"string", map[string]any{"gateway_fee": "2.50"}, 250},
		{"string with spaces", map[string]any{"gateway_fee": " 1.75 "}, 175},
		{"truncates sub-cent", map[string]any{"gateway_fee": "2.555"}, 255},
		{"negative kept", map[string]any{"gateway_fee": "-1.00"}, -100},
		{"negative truncates toward zero", map[string]any{"gateway_fee": "-0.015"}, -1},
		{"json number", map[string]any{"gateway_fee": json.Number("0.99")}, 99},
		{"float", map[string]any{"gateway_fee": 3.1}, 310},
		{"int", map[string]any{"gateway_fee": 4}, 400},
		{"missing", map[string]any{"other": "1"}, 0},
		{"nil meta", nil, 0},
		{"null value", map[string]any{"gateway_fee": nil}, 0},
		{"garbage", map[string]any{"gateway_fee": "n/a"}, 0},
		{"wrong type", map[string]any{"gateway_fee": []string{"1"}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GatewayFeeCents(tc.meta))
		})
	}
}

func TestHeader_Columns(t *testing.T) {
	require.Len(t, Header, 20)
	assert.Equal(t, "Order No.", Header[0])
	assert.Equal(t, "Total Amt (SGD)", Header[15])
	assert.Equal(t, "No. of Particiapnts", Header[18])
	assert.Equal(t, "No. of Merchandise", Header[19])
}

func TestRowFormatter_Row_FullOrder(t *testing.T) {
	sgt, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)

	paidAt := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	fs := model.FulfillmentCollected
	pm := model.PaymentPayNow

	o := model.Order{
		OrderNumber:         "ORD-0002",
		Types:               []model.OrderType{model.OrderTypeRegistration, model.OrderTypeMerchandise},
		Status:              model.OrderStatusPartiallyRefunded,
		FulfillmentStatus:   &fs,
		PaymentMethod:       &pm,
		PaidAt:              &paidAt,
		CategoryPriceAmount: 8000,
		AddOnAmount:         2500,
		SubtotalAmount:      10500,
		ProcessingFee:       300,
		GSTAmount:           1000,
		TotalAmount:         11800,
		PaymentMeta:         map[string]any{"gateway_fee": "1.75"},
		User:                &model.User{Email: "ben@example.test"},
		Tier:                &model.Tier{Name: "Early Bird"},
		Participants:        []model.Participant{{Name: "Ben"}, {Name: "Chloe"}},
		AddOns:              []model.AddOn{{Name: "Tee"}, {Name: "Cap"}, {Name: "Bottle"}},
		Refunds: []model.Refund{
			{Amount: 2500, Status: model.RefundCompleted},
			{Amount: 1000, Status: model.RefundPending},
		},
	}

	row := NewRowFormatter(sgt).Row(o)

	assert.Equal(t, []string{
		"ORD-0002",
		"ben@example.test",
		"Early Bird",
		"Registration, Merchandise",
		"2024/3/9 22:05",
		"PayNow",
		"Partially Refunded",
		"Collected",
		"80",
		"25",
		"0",
		"105",
		"3",
		"10",
		"-25",
		"118",
		"-1.75",
		"116.25",
		"2",
		"3",
	}, row)
}

func TestRowFormatter_Row_GatewayFeeScenario(t *testing.T) {
	o := model.Order{
		OrderNumber: "ORD-1",
		Status:      model.OrderStatusPaid,
		TotalAmount: 10000,
		PaymentMeta: map[string]any{"gateway_fee": "2.50"},
	}

	row := NewRowFormatter(time.UTC).Row(o)

	assert.Equal(t, "0", row[14], "no refunds")
	assert.Equal(t, "100", row[15])
	assert.Equal(t, "-2.5", row[16])
	assert.Equal(t, "97.5", row[17])
}

func TestRowFormatter_Row_NegativeGatewayFee(t *testing.T) {
	o := model.Order{
		OrderNumber: "ORD-2",
		Status:      model.OrderStatusPaid,
		TotalAmount: 10000,
		PaymentMeta: map[string]any{"gateway_fee": "-1.00"},
	}

	row := NewRowFormatter(time.UTC).Row(o)

	assert.Equal(t, "100", row[15])
	assert.Equal(t, "0", row[16], "fee column is clamped")
	assert.Equal(t, "101", row[17], "net is total minus fee")
}

func TestRowFormatter_Row_MissingRelations(t *testing.T) {
	row := NewRowFormatter(nil).Row(model.Order{OrderNumber: "ORD-3", Status: model.OrderStatusPending})

	require.Len(t, row, len(Header))
	assert.Equal(t, "", row[1], "buyer")
	assert.Equal(t, "", row[2], "tier")
	assert.Equal(t, "", row[3], "types")
	assert.Equal(t, "", row[4], "paid at")
	assert.Equal(t, "", row[5], "payment method")
	assert.Equal(t, "Pending", row[6])
	assert.Equal(t, "", row[7], "fulfillment")
	assert.Equal(t, "0", row[16], "gateway fee")
	assert.Equal(t, "0", row[18])
	assert.Equal(t, "0", row[19])
}
