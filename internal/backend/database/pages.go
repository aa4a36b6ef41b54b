package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// likeEscaper makes LIKE wildcards in search terms match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const pageColumns = `id, path, depth, numchild, title, draft_title, slug, content_type, live,
	has_unpublished_changes, latest_revision_created_at, owner_id, locale, translation_key, rank, content`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*Page, error) {
	var p Page
	var revised, owner sql.NullInt64
	if err := row.Scan(&p.ID, &p.Path, &p.Depth, &p.NumChild, &p.Title, &p.DraftTitle, &p.Slug,
		&p.ContentType, &p.Live, &p.HasUnpublishedChanges, &revised, &owner, &p.Locale,
		&p.TranslationKey, &p.Rank, &p.Content); err != nil {
		return nil, err
	}
	p.LatestRevisionCreatedAt = timePtr(revised)
	p.OwnerID = intPtr(owner)
	return &p, nil
}

func queryPages(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, query string, args ...any) ([]*Page, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var pages []*Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// orderClause turns a page ordering into an ORDER BY expression. Unset
// revision timestamps sort first ascending and last descending.
func orderClause(ordering PageOrdering) (string, error) {
	o := string(ordering)
	if o == "" {
		return "path", nil
	}
	if ordering == OrderingNative {
		return "rank, id", nil
	}
	desc := strings.HasPrefix(o, "-")
	column := strings.TrimPrefix(o, "-")
	switch column {
	case "title", "content_type", "live":
	case "latest_revision_created_at":
		if desc {
			return "latest_revision_created_at IS NULL, latest_revision_created_at DESC, id", nil
		}
		return "latest_revision_created_at IS NOT NULL, latest_revision_created_at ASC, id", nil
	default:
		return "", fmt.Errorf("invalid page ordering %q", o)
	}
	if desc {
		return column + " DESC, id", nil
	}
	return column + " ASC, id", nil
}

func (s *SQLiteDatabase) insertPage(ctx context.Context, tx *sql.Tx, page *Page) error {
	if page.TranslationKey == "" {
		page.TranslationKey = generateTranslationKey()
	}
	if page.Locale == "" {
		page.Locale = "en"
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO pages (path, depth, numchild, title, draft_title, slug,
		content_type, live, has_unpublished_changes, latest_revision_created_at, owner_id, locale,
		translation_key, rank, content) VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		page.Path, page.Depth, page.Title, page.DraftTitle, page.Slug, page.ContentType, page.Live,
		page.HasUnpublishedChanges, nullTime(page.LatestRevisionCreatedAt), nullInt(page.OwnerID),
		page.Locale, page.TranslationKey, page.Rank, page.Content)
	if err != nil {
		return err
	}
	page.ID, err = res.LastInsertId()
	page.NumChild = 0
	return err
}

func (s *SQLiteDatabase) CreateRootPage(ctx context.Context, page *Page) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages WHERE depth = 1").Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("root page already exists")
		}
		step, err := pathStep(1)
		if err != nil {
			return err
		}
		page.Path = step
		page.Depth = 1
		page.Rank = Next("")
		return s.insertPage(ctx, tx, page)
	})
}

func (s *SQLiteDatabase) CreateChildPage(ctx context.Context, parentID int64, page *Page) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		parent, err := scanPage(tx.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM pages WHERE id = ?", parentID))
		if err != nil {
			return notFound(err, "page", parentID)
		}

		var lastPath, lastRank sql.NullString
		err = tx.QueryRowContext(ctx, `SELECT MAX(path), MAX(rank) FROM pages WHERE path LIKE ? AND depth = ?`,
			parent.Path+"%", parent.Depth+1).Scan(&lastPath, &lastRank)
		if err != nil {
			return err
		}

		page.Path, err = childPath(parent.Path, lastPath.String)
		if err != nil {
			return err
		}
		page.Depth = parent.Depth + 1
		page.Rank = Next(lastRank.String)
		if page.Locale == "" {
			page.Locale = parent.Locale
		}
		if err := s.insertPage(ctx, tx, page); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE pages SET numchild = numchild + 1 WHERE id = ?", parent.ID)
		return err
	})
}

func (s *SQLiteDatabase) UpdatePage(ctx context.Context, page *Page) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pages SET title = ?, draft_title = ?, slug = ?, content_type = ?,
		live = ?, has_unpublished_changes = ?, latest_revision_created_at = ?, owner_id = ?, locale = ?,
		translation_key = ?, content = ? WHERE id = ?`,
		page.Title, page.DraftTitle, page.Slug, page.ContentType, page.Live, page.HasUnpublishedChanges,
		nullTime(page.LatestRevisionCreatedAt), nullInt(page.OwnerID), page.Locale, page.TranslationKey,
		page.Content, page.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("page %d: %w", page.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteDatabase) GetPage(ctx context.Context, id int64) (*Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM pages WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "page", id)
	}
	return p, nil
}

func (s *SQLiteDatabase) GetRootPage(ctx context.Context) (*Page, error) {
	p, err := scanPage(s.db.QueryRowContext(ctx, "SELECT "+pageColumns+" FROM pages WHERE depth = 1 ORDER BY path LIMIT 1"))
	if err != nil {
		return nil, notFound(err, "root page", "")
	}
	return p, nil
}

func (s *SQLiteDatabase) GetChildren(ctx context.Context, parentID int64, ordering PageOrdering) ([]*Page, error) {
	return s.ListPages(ctx, PageFilter{ParentID: &parentID, Ordering: ordering})
}

func (s *SQLiteDatabase) GetAncestors(ctx context.Context, page *Page) ([]*Page, error) {
	paths := AncestorPaths(page.Path)
	if len(paths) == 0 {
		return nil, nil
	}
	return queryPages(ctx, s.db, "SELECT "+pageColumns+" FROM pages WHERE path IN ("+placeholders(len(paths))+") ORDER BY path",
		stringArgs(paths)...)
}

func (s *SQLiteDatabase) GetTranslations(ctx context.Context, page *Page) ([]*Page, error) {
	return queryPages(ctx, s.db, "SELECT "+pageColumns+" FROM pages WHERE translation_key = ? AND id != ? ORDER BY locale, id",
		page.TranslationKey, page.ID)
}

func (s *SQLiteDatabase) ListPages(ctx context.Context, filter PageFilter) ([]*Page, error) {
	order, err := orderClause(filter.Ordering)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if filter.ParentID != nil {
		parent, err := s.GetPage(ctx, *filter.ParentID)
		if err != nil {
			return nil, err
		}
		where = append(where, "path LIKE ? AND depth = ?")
		args = append(args, parent.Path+"%", parent.Depth+1)
	}
	if len(filter.PathPrefixes) > 0 || len(filter.Paths) > 0 {
		var alternatives []string
		for _, prefix := range filter.PathPrefixes {
			alternatives = append(alternatives, "path LIKE ?")
			args = append(args, prefix+"%")
		}
		if len(filter.Paths) > 0 {
			alternatives = append(alternatives, "path IN ("+placeholders(len(filter.Paths))+")")
			args = append(args, stringArgs(filter.Paths)...)
		}
		where = append(where, "("+strings.Join(alternatives, " OR ")+")")
	}
	if len(filter.ContentTypes) > 0 {
		where = append(where, "content_type IN ("+placeholders(len(filter.ContentTypes))+")")
		args = append(args, stringArgs(filter.ContentTypes)...)
	}
	if filter.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}
	if term := strings.TrimSpace(filter.TitleSearch); term != "" {
		where = append(where, `(title LIKE ? ESCAPE '\' OR draft_title LIKE ? ESCAPE '\')`)
		pattern := "%" + likeEscaper.Replace(term) + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + pageColumns + " FROM pages"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + order
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return queryPages(ctx, s.db, query, args...)
}

func (s *SQLiteDatabase) MovePage(ctx context.Context, parentID int64, order []int64) error {
	children, err := s.GetChildren(ctx, parentID, OrderingNative)
	if err != nil {
		return err
	}
	existing := make(map[int64]string, len(children))
	for _, c := range children {
		existing[c.ID] = c.Rank
	}
	if len(order) != len(existing) {
		return fmt.Errorf("order lists %d pages, parent %d has %d children", len(order), parentID, len(existing))
	}
	seen := make(map[int64]bool, len(order))
	for _, id := range order {
		if _, ok := existing[id]; !ok || seen[id] {
			return fmt.Errorf("page %d is not a distinct child of %d", id, parentID)
		}
		seen[id] = true
	}

	updates := Reorder(existing, order)
	if len(updates) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for id, rank := range updates {
			if _, err := tx.ExecContext(ctx, "UPDATE pages SET rank = ? WHERE id = ?", rank, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
