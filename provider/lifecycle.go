package provider

import "context"

// Initializable is implemented by providers that need setup before handling
// requests. Registry.Create calls Init after the factory returns.
type Initializable interface {
	Init(ctx context.Context) error
}

// Closeable is implemented by providers that hold resources.
// Registry.Close calls Close on every registered instance.
type Closeable interface {
	Close(ctx context.Context) error
}
