package pages

import (
	"context"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/jo-hoe/cmsadmin/internal/backend/database"
)

const searchLimit = 100

// SearchResult is a page matching a title search and its similarity to the
// query in [0, 1].
type SearchResult struct {
	Page  *database.Page
	Score float64
}

// Search finds explorable pages whose title contains query and ranks them
// by how closely the title matches.
func Search(ctx context.Context, db database.DatabaseService, user *database.User, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	perms, err := LoadUserPagePermissions(ctx, db, user)
	if err != nil {
		return nil, err
	}
	if !perms.HasAnyPagePermission() {
		return nil, ErrPermissionDenied
	}

	pages, err := db.ListPages(ctx, perms.ExplorableFilter(database.PageFilter{
		TitleSearch: query,
		Ordering:    "title",
		Limit:       searchLimit,
	}))
	if err != nil {
		return nil, err
	}

	metric := metrics.NewJaroWinkler()
	metric.CaseSensitive = false
	results := make([]SearchResult, 0, len(pages))
	for _, p := range pages {
		if p.IsRoot() {
			continue
		}
		results = append(results, SearchResult{Page: p, Score: strutil.Similarity(query, p.AdminDisplayTitle(), metric)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
