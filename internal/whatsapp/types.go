package whatsapp

// Components are the template slots filled at send time.
type Components struct {
	Header  []Parameter `json:"header,omitempty"`
	Body    []Parameter `json:"body,omitempty"`
	Buttons []Button    `json:"buttons,omitempty"`
}

func (c *Components) IsEmpty() bool {
	return c == nil || (len(c.Header) == 0 && len(c.Body) == 0 && len(c.Buttons) == 0)
}

// Parameter is one template variable. Type selects which of the other fields
// is read: text, payload, image, document or video.
type Parameter struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Payload  string `json:"payload,omitempty"`
	Image    *Media `json:"image,omitempty"`
	Document *Media `json:"document,omitempty"`
	Video    *Media `json:"video,omitempty"`
}

type Media struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Button fills a dynamic button; SubType is url, quick_reply or copy_code.
type Button struct {
	SubType    string      `json:"sub_type"`
	Index      int         `json:"index"`
	Parameters []Parameter `json:"parameters"`
}

func TextParam(s string) Parameter { return Parameter{Type: "text", Text: s} }

func PayloadParam(s string) Parameter { return Parameter{Type: "payload", Payload: s} }

func ImageParam(link string) Parameter {
	return Parameter{Type: "image", Image: &Media{Link: link}}
}

func DocumentParam(link, filename string) Parameter {
	return Parameter{Type: "document", Document: &Media{Link: link, Filename: filename}}
}

// Response is the raw reply of the messages endpoint.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) OK() bool { return r != nil && r.StatusCode == 200 }

// wire format of POST /{version}/{phone-number-id}/messages

type sendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         templateBody `json:"template"`
}

type templateBody struct {
	Name       string          `json:"name"`
	Language   language        `json:"language"`
	Components []componentBody `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

type componentBody struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      *string     `json:"index,omitempty"`
	Parameters []Parameter `json:"parameters"`
}
