package models

// TransferEvent is the message published to Kafka after a transfer commits.
// Published best effort: a publish failure never affects the committed outcome.
type TransferEvent struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	SenderID      string `json:"sender_account_id"`
	ReceiverID    string `json:"receiver_account_id"`
	Amount        string `json:"amount"` // Decimal string, scale 2
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Timestamp     int64  `json:"timestamp"` // Unix seconds
}
