package diagram

import "context"

// Store is the Diagram Model Store's persistence contract: CRUD only,
// per SPEC_FULL.md's explicit Non-goals (no layout engine, no SVG
// export).
type Store interface {
	Create(ctx context.Context, d Diagram) (Diagram, error)
	Get(ctx context.Context, id string) (Diagram, bool, error)
	List(ctx context.Context) ([]Diagram, error)
	Update(ctx context.Context, d Diagram) (Diagram, error)
	Delete(ctx context.Context, id string) error
}
