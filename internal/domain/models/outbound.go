package models

// OutboundMessageRequest represents a WhatsApp text to a farmer or committee member.
type OutboundMessageRequest struct {
	To         string `json:"to" binding:"required"`
	Message    string `json:"message" binding:"required"`
	PreviewURL bool   `json:"preview_url"`
}
