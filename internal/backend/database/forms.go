package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var submissionOrderColumns = map[string]string{
	"id":           "id ASC",
	"-id":          "id DESC",
	"submit_time":  "submit_time ASC",
	"-submit_time": "submit_time DESC",
}

// SetFormFields replaces the fields of a form page, keeping the given order.
func (s *SQLiteDatabase) SetFormFields(ctx context.Context, pageID int64, fields []*FormField) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM form_fields WHERE page_id = ?", pageID); err != nil {
			return err
		}
		for i, f := range fields {
			f.PageID = pageID
			f.SortOrder = i
			res, err := tx.ExecContext(ctx, `INSERT INTO form_fields (page_id, sort_order, label, clean_name, field_type,
				required, choices, default_value, help_text) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				f.PageID, f.SortOrder, f.Label, f.CleanName, f.FieldType, f.Required, f.Choices, f.DefaultValue, f.HelpText)
			if err != nil {
				return fmt.Errorf("insert form field %q: %w", f.Label, err)
			}
			if f.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteDatabase) GetFormFields(ctx context.Context, pageID int64) ([]*FormField, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, page_id, sort_order, label, clean_name, field_type, required,
		choices, default_value, help_text FROM form_fields WHERE page_id = ? ORDER BY sort_order, id`, pageID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var fields []*FormField
	for rows.Next() {
		var f FormField
		if err := rows.Scan(&f.ID, &f.PageID, &f.SortOrder, &f.Label, &f.CleanName, &f.FieldType, &f.Required,
			&f.Choices, &f.DefaultValue, &f.HelpText); err != nil {
			return nil, err
		}
		fields = append(fields, &f)
	}
	return fields, rows.Err()
}

func (s *SQLiteDatabase) AddSubmission(ctx context.Context, submission *FormSubmission) error {
	res, err := s.db.ExecContext(ctx, "INSERT INTO form_submissions (page_id, form_data, submit_time) VALUES (?, ?, ?)",
		submission.PageID, submission.FormData, toNanos(submission.SubmitTime))
	if err != nil {
		return err
	}
	submission.ID, err = res.LastInsertId()
	return err
}

func querySubmissions(ctx context.Context, db *sql.DB, query string, args ...any) ([]*FormSubmission, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var submissions []*FormSubmission
	for rows.Next() {
		var sub FormSubmission
		var submitted int64
		if err := rows.Scan(&sub.ID, &sub.PageID, &sub.FormData, &submitted); err != nil {
			return nil, err
		}
		sub.SubmitTime = fromNanos(submitted)
		submissions = append(submissions, &sub)
	}
	return submissions, rows.Err()
}

// ListSubmissions returns the submissions of a page. From is inclusive and To
// exclusive; OrderBy terms outside id/submit_time are rejected.
func (s *SQLiteDatabase) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]*FormSubmission, error) {
	query := "SELECT id, page_id, form_data, submit_time FROM form_submissions WHERE page_id = ?"
	args := []any{filter.PageID}
	if filter.From != nil {
		query += " AND submit_time >= ?"
		args = append(args, toNanos(*filter.From))
	}
	if filter.To != nil {
		query += " AND submit_time < ?"
		args = append(args, toNanos(*filter.To))
	}

	var order []string
	for _, term := range filter.OrderBy {
		column, ok := submissionOrderColumns[term]
		if !ok {
			return nil, fmt.Errorf("invalid submission ordering %q", term)
		}
		order = append(order, column)
	}
	if len(order) == 0 {
		order = append(order, submissionOrderColumns["-submit_time"])
	}
	query += " ORDER BY " + strings.Join(order, ", ")

	return querySubmissions(ctx, s.db, query, args...)
}

func (s *SQLiteDatabase) CountSubmissions(ctx context.Context, pageID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM form_submissions WHERE page_id = ?", pageID).Scan(&n)
	return n, err
}

func (s *SQLiteDatabase) GetSubmissionsByID(ctx context.Context, pageID int64, ids []int64) ([]*FormSubmission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]any{pageID}, int64Args(ids)...)
	return querySubmissions(ctx, s.db, "SELECT id, page_id, form_data, submit_time FROM form_submissions WHERE page_id = ? AND id IN ("+
		placeholders(len(ids))+") ORDER BY id", args...)
}

// DeleteSubmissions removes the given submissions of a page and reports how
// many rows were deleted. Ids belonging to other pages are ignored.
func (s *SQLiteDatabase) DeleteSubmissions(ctx context.Context, pageID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{pageID}, int64Args(ids)...)
	res, err := s.db.ExecContext(ctx, "DELETE FROM form_submissions WHERE page_id = ? AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
