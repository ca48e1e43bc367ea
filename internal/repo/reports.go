package repo

import (
	"context"
	"database/sql"

	"reportline/internal/domain"
)

const reportColumns = `id,region_id,author_id,activity_recipient_type,start_date,end_date,duration,number_of_participants,delivery_method,context,additional_notes,submission_status,calculated_status,approved_at,created_at,updated_at`

func scanReport(row interface{ Scan(...any) error }) (domain.Report, error) {
	var (
		rep                    domain.Report
		region, author, parts  sql.NullInt64
		start, end, approvedAt sql.NullString
		duration               sql.NullFloat64
	)
	err := row.Scan(&rep.ID, &region, &author, &rep.ActivityRecipientType, &start, &end, &duration, &parts,
		&rep.DeliveryMethod, &rep.Context, &rep.AdditionalNotes, &rep.SubmissionStatus, &rep.CalculatedStatus,
		&approvedAt, &rep.CreatedAt, &rep.UpdatedAt)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	if err != nil {
		return rep, err
	}
	rep.RegionID = int64Ptr(region)
	rep.AuthorID = int64Ptr(author)
	rep.StartDate = stringPtr(start)
	rep.EndDate = stringPtr(end)
	rep.ApprovedAt = stringPtr(approvedAt)
	if duration.Valid {
		d := duration.Float64
		rep.Duration = &d
	}
	if parts.Valid {
		n := int(parts.Int64)
		rep.NumberOfParticipants = &n
	}
	return rep, nil
}

// InsertReport stores a new report and returns its id.
func (r Repo) InsertReport(ctx context.Context, q Querier, rep domain.Report) (int64, error) {
	res, err := r.on(q).ExecContext(ctx, `INSERT INTO reports(region_id,author_id,activity_recipient_type,start_date,end_date,duration,number_of_participants,delivery_method,context,additional_notes,submission_status,calculated_status,approved_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		nullableInt64Ptr(rep.RegionID), nullableInt64Ptr(rep.AuthorID), string(rep.ActivityRecipientType),
		nullableStringPtr(rep.StartDate), nullableStringPtr(rep.EndDate), nullableFloatPtr(rep.Duration), nullableIntPtr(rep.NumberOfParticipants),
		rep.DeliveryMethod, rep.Context, rep.AdditionalNotes, string(rep.SubmissionStatus), string(rep.CalculatedStatus),
		nullableStringPtr(rep.ApprovedAt), rep.CreatedAt, rep.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetReport(ctx context.Context, q Querier, id int64) (domain.Report, error) {
	return scanReport(r.on(q).QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id))
}

// UpdateReportScalars writes every client-editable column of rep.
func (r Repo) UpdateReportScalars(ctx context.Context, q Querier, rep domain.Report) error {
	res, err := r.on(q).ExecContext(ctx, `UPDATE reports SET region_id=?,author_id=?,activity_recipient_type=?,start_date=?,end_date=?,duration=?,number_of_participants=?,delivery_method=?,context=?,additional_notes=?,submission_status=?,updated_at=? WHERE id=?`,
		nullableInt64Ptr(rep.RegionID), nullableInt64Ptr(rep.AuthorID), string(rep.ActivityRecipientType),
		nullableStringPtr(rep.StartDate), nullableStringPtr(rep.EndDate), nullableFloatPtr(rep.Duration), nullableIntPtr(rep.NumberOfParticipants),
		rep.DeliveryMethod, rep.Context, rep.AdditionalNotes, string(rep.SubmissionStatus), rep.UpdatedAt, rep.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateReportStatus stores the derived status columns.
func (r Repo) UpdateReportStatus(ctx context.Context, q Querier, id int64, status domain.CalculatedStatus, approvedAt *string, updatedAt string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE reports SET calculated_status=?,approved_at=?,updated_at=? WHERE id=?`,
		string(status), nullableStringPtr(approvedAt), updatedAt, id)
	return err
}

func (r Repo) UpdateSubmissionStatus(ctx context.Context, q Querier, id int64, status domain.SubmissionStatus, updatedAt string) error {
	_, err := r.on(q).ExecContext(ctx, `UPDATE reports SET submission_status=?,updated_at=? WHERE id=?`, string(status), updatedAt, id)
	return err
}
