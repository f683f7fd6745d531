package solana

import "context"

// WSClient defines the Solana WebSocket account subscription interface.
type WSClient interface {
	// SubscribeAccounts subscribes to changes of every address. All
	// notifications of the client are delivered on one channel, which is
	// closed by Close.
	SubscribeAccounts(ctx context.Context, addresses []string) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification represents one accountNotification message.
type AccountNotification struct {
	Address string
	Slot    uint64
	Account *AccountInfo
}
