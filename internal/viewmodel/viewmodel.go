package viewmodel

// ChatPage holds data for the chat page template.
type ChatPage struct {
	Title        string
	Welcome      string
	ClientAPIKey string
	WebhookPath  string
	HistoryPath  string
	StreamPath   string
}

// MessageList is the JSON body of the history endpoint.
type MessageList[T any] struct {
	Messages []T `json:"messages"`
}

// Envelope wraps webhook responses.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// UserMessageData is the data of a user-mode webhook response.
type UserMessageData[T any] struct {
	Session string `json:"sessao"`
	Player  string `json:"player"`
	Message string `json:"mensagem"`
	Vendor  string `json:"vendedor,omitempty"`
	Room    string `json:"nom_sala,omitempty"`
	Record  T      `json:"record"`
	Reply   *T     `json:"reply,omitempty"`
}

// ErrorBody is returned for every non-2xx API response.
type ErrorBody struct {
	Error string `json:"error"`
}
