package domain

// MessageType defines what a Message renders as.
type MessageType string

const (
	MessageText    MessageType = "text"
	MessagePicture MessageType = "picture"
	MessageRDL     MessageType = "rdl"
	MessageChoice  MessageType = "choice"
	MessageButton  MessageType = "button"
	MessageLink    MessageType = "link"
)

// Message is one user-visible output of the conversation.
type Message struct {
	Type MessageType `json:"type"`
	Text string      `json:"text,omitempty"`
	Icon string      `json:"icon,omitempty"`
	// URL is the picture, card or link target.
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
	// Payload is what a button sends back when pressed.
	Payload string `json:"payload,omitempty"`
	// Index is the position of a choice in a multiple-choice prompt.
	Index int `json:"index,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(text, icon string) Message {
	return Message{Type: MessageText, Text: text, Icon: icon}
}
