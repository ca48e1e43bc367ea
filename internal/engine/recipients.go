package engine

import (
	"context"
	"fmt"

	"reportline/internal/domain"
)

// syncRecipients reconciles grant or other-entity attachments and sets
// rc.scope from what remains. A recipient type change drops every attachment
// of the previous kind even when the payload omits recipients.
func (e Engine) syncRecipients(ctx context.Context, rc *reconcileCtx, ids *[]int64) error {
	rtype := rc.report.ActivityRecipientType
	if ids != nil && len(*ids) > 0 && rtype == "" {
		return invalid("activityRecipientType", "is required when recipients are given")
	}
	have, err := e.Repo.ListRecipients(ctx, rc.tx, rc.report.ID)
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}

	var want map[int64]bool
	if ids != nil {
		desired := dedupe(*ids)
		if len(desired) > 0 {
			table := "grants"
			if rtype == domain.RecipientTypeOtherEntity {
				table = "other_entities"
			}
			if err := e.requireExisting(ctx, rc, table, "recipients", desired); err != nil {
				return err
			}
		}
		want = toSet(desired)
	}

	var kept []int64
	current := map[int64]bool{}
	for _, rec := range have {
		id, ok := attachmentID(rec, rtype)
		drop := !ok || (want != nil && !want[id])
		if drop {
			if err := e.Repo.DeleteRecipient(ctx, rc.tx, rec.ID); err != nil {
				return fmt.Errorf("delete recipient %d: %w", rec.ID, err)
			}
			continue
		}
		current[id] = true
		kept = append(kept, id)
	}
	if ids != nil {
		for _, id := range dedupe(*ids) {
			if current[id] {
				continue
			}
			if err := e.Repo.InsertRecipient(ctx, rc.tx, rc.report.ID, rtype, id, rc.now); err != nil {
				return fmt.Errorf("insert recipient %d: %w", id, err)
			}
			current[id] = true
			kept = append(kept, id)
		}
	}

	if rtype == "" {
		rc.scope = nil
		return nil
	}
	scope, err := domain.ScopeFor(rtype, kept)
	if err != nil {
		return invalid("activityRecipientType", "%s", err.Error())
	}
	rc.scope = scope
	return nil
}

// attachmentID returns the id held in the column selected by rtype.
func attachmentID(rec domain.Recipient, rtype domain.RecipientType) (int64, bool) {
	switch rtype {
	case domain.RecipientTypeGrant:
		if rec.GrantID != nil {
			return *rec.GrantID, true
		}
	case domain.RecipientTypeOtherEntity:
		if rec.OtherEntityID != nil {
			return *rec.OtherEntityID, true
		}
	}
	return 0, false
}
