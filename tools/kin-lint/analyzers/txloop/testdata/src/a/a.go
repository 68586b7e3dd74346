package a

import "context"

type Stores struct{}

type GraphStore interface {
	RunInTx(ctx context.Context, fn func(Stores) error) error
}

func bad(ctx context.Context, ids []string, store GraphStore) {
	for range ids {
		_ = store.RunInTx(ctx, func(Stores) error { return nil }) // want "RunInTx called inside loop"
	}
	for i := 0; i < 3; i++ {
		if err := store.RunInTx(ctx, func(Stores) error { return nil }); err != nil { // want "RunInTx called inside loop"
			return
		}
	}
}

func good(ctx context.Context, ids []string, store GraphStore) {
	// One transaction around the loop
	_ = store.RunInTx(ctx, func(Stores) error {
		for _, id := range ids {
			_ = id
		}
		return nil
	})

	// Concurrent transactions are deliberate
	done := make(chan error, len(ids))
	for range ids {
		go func() {
			done <- store.RunInTx(ctx, func(Stores) error { return nil })
		}()
	}
}
