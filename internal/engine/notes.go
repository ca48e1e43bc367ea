package engine

import (
	"context"
	"fmt"

	"reportline/internal/domain"
)

// syncNotes reconciles one next-steps channel. Notes keep their id when the
// payload names it; unnamed notes with no text and no completion date are dropped.
func (e Engine) syncNotes(ctx context.Context, rc *reconcileCtx, channel domain.NoteChannel, notes []domain.NotePayload) error {
	have, err := e.Repo.ListNotes(ctx, rc.tx, rc.report.ID, channel)
	if err != nil {
		return fmt.Errorf("list %s notes: %w", channel, err)
	}
	existing := make(map[int64]domain.Note, len(have))
	for _, n := range have {
		existing[n.ID] = n
	}
	// ids the payload names explicitly are never claimed by content matching
	reserved := map[int64]bool{}
	for _, np := range notes {
		if np.ID != nil {
			if _, ok := existing[*np.ID]; ok {
				reserved[*np.ID] = true
			}
		}
	}
	keep := map[int64]bool{}
	for _, np := range notes {
		var complete *string
		if np.CompleteDate != "" {
			d := np.CompleteDate
			complete = &d
		}
		if np.ID != nil {
			if cur, ok := existing[*np.ID]; ok && !keep[cur.ID] {
				keep[cur.ID] = true
				if cur.Note == np.Note && equalStringPtr(cur.CompleteDate, complete) {
					continue
				}
				cur.Note, cur.CompleteDate, cur.UpdatedAt = np.Note, complete, rc.now
				if err := e.Repo.UpdateNote(ctx, rc.tx, cur); err != nil {
					return fmt.Errorf("update note %d: %w", cur.ID, err)
				}
				continue
			}
		}
		if np.Note == "" && complete == nil {
			continue
		}
		if same, ok := findSameNote(have, keep, reserved, np.Note, complete); ok {
			keep[same] = true
			continue
		}
		id, err := e.Repo.InsertNote(ctx, rc.tx, domain.Note{
			ReportID:     rc.report.ID,
			Channel:      channel,
			Note:         np.Note,
			CompleteDate: complete,
			CreatedAt:    rc.now,
			UpdatedAt:    rc.now,
		})
		if err != nil {
			return fmt.Errorf("insert %s note: %w", channel, err)
		}
		keep[id] = true
	}
	for _, n := range have {
		if keep[n.ID] {
			continue
		}
		if err := e.Repo.DeleteNote(ctx, rc.tx, n.ID); err != nil {
			return fmt.Errorf("delete note %d: %w", n.ID, err)
		}
	}
	return nil
}

// findSameNote returns an unclaimed note with identical content, so resending
// a payload without ids does not duplicate notes.
func findSameNote(have []domain.Note, claimed, reserved map[int64]bool, text string, complete *string) (int64, bool) {
	for _, n := range have {
		if !claimed[n.ID] && !reserved[n.ID] && n.Note == text && equalStringPtr(n.CompleteDate, complete) {
			return n.ID, true
		}
	}
	return 0, false
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
