package i

import "context"

// CodeReserver guards room codes shared by several server instances.
type CodeReserver interface {
	// Reserve claims the code. It returns false when another holder already owns it.
	Reserve(ctx context.Context, code string) (bool, error)

	// Release gives the code back.
	Release(ctx context.Context, code string) error

	// Refresh extends the reservations of codes still in use.
	Refresh(ctx context.Context, codes ...string) error
}
