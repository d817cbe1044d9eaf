package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/jmehdipour/orderdesk/internal/whatsapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockTemplateSender struct {
	mock.Mock
}

func (m *MockTemplateSender) SendTemplate(ctx context.Context, to, name, lang string, components *whatsapp.Components) (*whatsapp.Response, error) {
	args := m.Called(ctx, to, name, lang, components)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*whatsapp.Response), args.Error(1)
}

type plainNotification struct{}

func (plainNotification) Via(Notifiable) []string { return []string{ChannelWhatsApp} }

type rawNotification struct{ msg WhatsAppMessage }

func (rawNotification) Via(Notifiable) []string { return []string{ChannelWhatsApp} }

func (n rawNotification) ToWhatsApp(Notifiable) WhatsAppMessage { return n.msg }

func validMessage() WhatsAppMessage {
	return WhatsAppMessage{
		To:           "6591234567",
		TemplateName: "order_update",
		Language:     "en",
		Components:   &whatsapp.Components{Body: []whatsapp.Parameter{whatsapp.TextParam("hi")}},
	}
}

// --- Tests ---

func TestWhatsAppChannel_Send_Success(t *testing.T) {
	client := new(MockTemplateSender)
	msg := validMessage()
	client.On("SendTemplate", mock.Anything, msg.To, msg.TemplateName, msg.Language, msg.Components).
		Return(&whatsapp.Response{StatusCode: 200, Body: []byte(`{}`)}, nil).Once()

	err := NewWhatsAppChannel(client, nil).Send(context.Background(), Recipient{}, rawNotification{msg: msg})

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestWhatsAppChannel_Send_SkipsWithoutCapability(t *testing.T) {
	client := new(MockTemplateSender)

	err := NewWhatsAppChannel(client, nil).Send(context.Background(), Recipient{}, plainNotification{})

	require.NoError(t, err)
	client.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWhatsAppChannel_Send_MissingFields(t *testing.T) {
	cases := map[string]func(*WhatsAppMessage){
		"to":            func(m *WhatsAppMessage) { m.To = "" },
		"template_name": func(m *WhatsAppMessage) { m.TemplateName = "" },
		"language":      func(m *WhatsAppMessage) { m.Language = "" },
		"components":    func(m *WhatsAppMessage) { m.Components = nil },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			client := new(MockTemplateSender)
			msg := validMessage()
			mutate(&msg)

			err := NewWhatsAppChannel(client, nil).Send(context.Background(), Recipient{}, rawNotification{msg: msg})

			require.ErrorIs(t, err, ErrInvalidMessage)
			assert.Contains(t, err.Error(), field)
			client.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestWhatsAppChannel_Send_APIError(t *testing.T) {
	client := new(MockTemplateSender)
	client.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&whatsapp.Response{StatusCode: 403, Body: []byte(`{"error":"forbidden"}`)}, nil).Once()

	err := NewWhatsAppChannel(client, nil).Send(context.Background(), Recipient{}, rawNotification{msg: validMessage()})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.Equal(t, `{"error":"forbidden"}`, apiErr.Body)
	// no retry
	client.AssertNumberOfCalls(t, "SendTemplate", 1)
}

func TestWhatsAppChannel_Send_TransportError(t *testing.T) {
	client := new(MockTemplateSender)
	client.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, whatsapp.ErrCircuitOpen).Once()

	err := NewWhatsAppChannel(client, nil).Send(context.Background(), Recipient{}, rawNotification{msg: validMessage()})

	require.ErrorIs(t, err, whatsapp.ErrCircuitOpen)
	assert.Contains(t, err.Error(), "order_update")
}

func TestOrderUpdateNotification_ToWhatsApp(t *testing.T) {
	n := OrderUpdateNotification{Message: "Shipped", URL: "https://x.test/o/1", Template: "order_update", Language: "en"}

	msg := n.ToWhatsApp(Recipient{Phone: "6590000000"})

	assert.Equal(t, "6590000000", msg.To)
	assert.Equal(t, "order_update", msg.TemplateName)
	assert.Equal(t, "en", msg.Language)
	require.NotNil(t, msg.Components)
	assert.Equal(t, []whatsapp.Parameter{whatsapp.TextParam("Shipped"), whatsapp.TextParam("https://x.test/o/1")}, msg.Components.Body)
	assert.Equal(t, []string{ChannelWhatsApp}, n.Via(Recipient{}))
}

func TestAPIError_Error(t *testing.T) {
	err := error(&APIError{StatusCode: 500, Body: "oops"})
	assert.Equal(t, "whatsapp api returned 500: oops", err.Error())
	assert.False(t, errors.Is(err, ErrInvalidMessage))
}
