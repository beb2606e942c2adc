package webhook

// Request is the part of a Dialogflow fulfillment request we read.
type Request struct {
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

type QueryResult struct {
	Action     string         `json:"action"`
	QueryText  string         `json:"queryText"`
	Parameters map[string]any `json:"parameters"`
}

// Param returns a parameter as text. List parameters yield their first
// element.
func (q QueryResult) Param(name string) string {
	switch v := q.Parameters[name].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// Response is a Dialogflow fulfillment response. Either field may be set.
type Response struct {
	FulfillmentText     string    `json:"fulfillmentText,omitempty"`
	FulfillmentMessages []Message `json:"fulfillmentMessages,omitempty"`
}

// Message wraps one LINE message as a custom payload.
type Message struct {
	Payload Payload `json:"payload"`
}

type Payload struct {
	Line LineMessage `json:"line"`
}

type LineMessage struct {
	Type     string      `json:"type"` // text | flex
	Text     string      `json:"text,omitempty"`
	AltText  string      `json:"altText,omitempty"`
	Contents *FlexBubble `json:"contents,omitempty"`
}

type FlexBubble struct {
	Type   string         `json:"type"` // bubble
	Hero   *FlexComponent `json:"hero,omitempty"`
	Body   *FlexComponent `json:"body,omitempty"`
	Footer *FlexComponent `json:"footer,omitempty"`
}

// FlexComponent covers the boxes, texts, images and buttons we send.
type FlexComponent struct {
	Type        string          `json:"type"`
	Layout      string          `json:"layout,omitempty"`
	Spacing     string          `json:"spacing,omitempty"`
	Contents    []FlexComponent `json:"contents,omitempty"`
	Text        string          `json:"text,omitempty"`
	Weight      string          `json:"weight,omitempty"`
	Size        string          `json:"size,omitempty"`
	Wrap        bool            `json:"wrap,omitempty"`
	URL         string          `json:"url,omitempty"`
	AspectRatio string          `json:"aspectRatio,omitempty"`
	AspectMode  string          `json:"aspectMode,omitempty"`
	Style       string          `json:"style,omitempty"`
	Action      *FlexAction     `json:"action,omitempty"`
}

type FlexAction struct {
	Type  string `json:"type"` // uri
	Label string `json:"label"`
	URI   string `json:"uri"`
}

func textMessage(text string) Message {
	return Message{Payload: Payload{Line: LineMessage{Type: "text", Text: text}}}
}

func flexMessage(altText string, bubble *FlexBubble) Message {
	return Message{Payload: Payload{Line: LineMessage{Type: "flex", AltText: altText, Contents: bubble}}}
}

func smallText(text string) FlexComponent {
	return FlexComponent{Type: "text", Text: text, Size: "sm", Wrap: true}
}
