package engine

import (
	"context"
	"fmt"

	"reportline/internal/domain"
)

// syncObjectiveMetadata makes the join row's topics, resources, files and
// courses equal to want, keeping want's order. Existing matches keep their row.
func (e Engine) syncObjectiveMetadata(ctx context.Context, rc *reconcileCtx, aroID int64, want []domain.MetadataItem) error {
	have, err := e.Repo.ListObjectiveMetadata(ctx, rc.tx, aroID)
	if err != nil {
		return fmt.Errorf("list objective metadata: %w", err)
	}
	wanted := make(map[domain.MetadataItem]bool, len(want))
	for _, m := range want {
		wanted[m] = true
	}
	existing := make(map[domain.MetadataItem]int, len(have))
	for _, row := range have {
		if !wanted[row.Item] {
			if err := e.Repo.DeleteObjectiveMetadata(ctx, rc.tx, aroID, row.Item); err != nil {
				return fmt.Errorf("delete objective %s: %w", row.Item.Kind, err)
			}
			continue
		}
		existing[row.Item] = row.Position
	}
	seen := make(map[domain.MetadataItem]bool, len(want))
	position := 0
	for _, m := range want {
		if seen[m] {
			continue
		}
		seen[m] = true
		pos, ok := existing[m]
		switch {
		case !ok:
			if err := e.Repo.InsertObjectiveMetadata(ctx, rc.tx, aroID, m, position); err != nil {
				return fmt.Errorf("insert objective %s: %w", m.Kind, err)
			}
		case pos != position:
			if err := e.Repo.UpdateObjectiveMetadataPosition(ctx, rc.tx, aroID, m, position); err != nil {
				return fmt.Errorf("reorder objective %s: %w", m.Kind, err)
			}
		}
		position++
	}
	return nil
}
