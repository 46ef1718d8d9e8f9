package db

import (
	"fmt"
	"sort"
	"strings"

	"profileserver/models"
)

// Query parameter limits and defaults, shared with the API layer.
const (
	DefaultQueryLimit = 20
	MaxQueryLimit     = 100
)

// QueryProfilesParams carries the filtering, sorting, and pagination
// parameters for the browse surface.
type QueryProfilesParams struct {
	Search string // Case-insensitive contains match on username and display name
	SortBy string // "username" (default) or "view_count"
	Order  string // "asc" (default) or "desc"
	Page   int    // 1-based; 0 means 1
	Limit  int    // 0 means DefaultQueryLimit; capped at MaxQueryLimit
}

// QueryProfiles filters, sorts, and paginates the profile collection.
// It returns the page of profiles and the total number of matches before
// pagination.
func (db *Database) QueryProfiles(params QueryProfilesParams) ([]models.Profile, int, error) {
	switch params.SortBy {
	case "", "username", "view_count":
	default:
		return nil, 0, fmt.Errorf("invalid sort_by field: '%s'", params.SortBy)
	}
	switch params.Order {
	case "", "asc", "desc":
	default:
		return nil, 0, fmt.Errorf("invalid order: '%s'", params.Order)
	}

	all := db.GetAllProfiles()

	// Filter
	matched := make([]models.Profile, 0, len(all))
	search := strings.ToLower(params.Search)
	for _, profile := range all {
		if search != "" && !profileMatches(profile, search) {
			continue
		}
		matched = append(matched, profile)
	}
	total := len(matched)

	// Sort. Username is the tiebreaker everywhere so pagination is stable
	// across requests.
	descending := params.Order == "desc"
	sort.SliceStable(matched, func(i, j int) bool {
		p1, p2 := matched[i], matched[j]
		var less bool
		switch params.SortBy {
		case "view_count":
			if p1.ViewCount != p2.ViewCount {
				less = p1.ViewCount < p2.ViewCount
			} else {
				less = p1.Username < p2.Username
			}
		default:
			less = strings.ToLower(p1.Username) < strings.ToLower(p2.Username)
		}
		if descending {
			return !less
		}
		return less
	})

	return paginateProfiles(matched, params.Page, params.Limit), total, nil
}

// profileMatches reports whether the search term occurs in the profile's
// username or display name (case-insensitive).
func profileMatches(profile models.Profile, search string) bool {
	if strings.Contains(strings.ToLower(profile.Username), search) {
		return true
	}
	if profile.DisplayName != nil && strings.Contains(strings.ToLower(*profile.DisplayName), search) {
		return true
	}
	return false
}

// paginateProfiles slices a result set according to 1-based page/limit,
// applying defaults and the maximum page size.
func paginateProfiles(profiles []models.Profile, page, limit int) []models.Profile {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	start := (page - 1) * limit
	if start >= len(profiles) {
		return []models.Profile{}
	}
	end := start + limit
	if end > len(profiles) {
		end = len(profiles)
	}
	return profiles[start:end]
}
