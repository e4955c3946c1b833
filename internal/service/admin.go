package service

import (
	"context"
	"strings"

	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/repository"
)

// OtherPrefix marks a free-text location outside the campus list.
const OtherPrefix = "Other - "

// CampusLocations are the locations offered by the report form.
var CampusLocations = []string{
	// academic
	"Laz Otti Library", "BBS", "Education & Humanities Faculty",
	"Post Graduate School", "CIBN Bankers Hall", "The School of Computing",
	"New Horizon 1", "New Horizon 2 (ICT center)", "BUCODEL",
	"Alalade Senate Building (Registry)",
	// male hostels
	"Gideon Troopers", "Winslow", "Bethel Splendor", "Samuel Akande",
	"Neal Wilson", "Nelson Mandela", "Welch Hall", "Gamaliel Hall",
	"Emerald", "Topaz",
	// female hostels
	"Felicia Adebisi Dada", "Queen Esther", "Platinum", "Ameyo Adadevoh",
	"Justice Deborah", "Havilah Gold", "Crystal Hall", "White Hall",
	"Nyberg Hall", "Ogden Hall", "Sapphire", "Diamond",
	// social and admin
	"Alalade Senate Building", "University Main Church", "Central Cafeteria",
	"Babcock Super Store", "Amphi Theatre", "Sports Complex",
	"Babcock University Teaching Hospital (BUTH)", "The University Stadium",
	"The School Gate", "Babcock Guest House (BGH)",
	"MSQ Gate", "Medical Exit Gate",
}

var campus = func() map[string]bool {
	m := make(map[string]bool, len(CampusLocations))
	for _, l := range CampusLocations {
		m[l] = true
	}
	return m
}()

// NormalizeResult reports a location normalization run.
type NormalizeResult struct {
	Total   int
	Updated int
}

// AdminService holds maintenance operations. Callers must enforce the admin role.
type AdminService interface {
	NormalizeLocations(ctx context.Context) (NormalizeResult, error)
	WipeItems(ctx context.Context) (int64, error)
	DeleteItem(ctx context.Context, id int64) error
}

type AdminServiceImpl struct {
	items repository.ItemRepository
}

func NewAdminService(items repository.ItemRepository) *AdminServiceImpl {
	return &AdminServiceImpl{items: items}
}

// NormalizeLocation returns loc with OtherPrefix unless it is empty, a campus
// location, or already prefixed.
func NormalizeLocation(loc string) (string, bool) {
	if loc == "" || campus[loc] || strings.HasPrefix(loc, OtherPrefix) {
		return loc, false
	}
	return OtherPrefix + loc, true
}

// NormalizeLocations rewrites every non-campus location in one transaction.
func (s *AdminServiceImpl) NormalizeLocations(ctx context.Context) (NormalizeResult, error) {
	all, err := s.items.Locations(ctx)
	if err != nil {
		return NormalizeResult{}, err
	}
	var updates []model.ItemLocation
	for _, l := range all {
		if next, changed := NormalizeLocation(l.Location); changed {
			updates = append(updates, model.ItemLocation{ID: l.ID, Location: next})
		}
	}
	if len(updates) > 0 {
		if err := s.items.SetLocations(ctx, updates); err != nil {
			return NormalizeResult{}, err
		}
	}
	return NormalizeResult{Total: len(all), Updated: len(updates)}, nil
}

func (s *AdminServiceImpl) WipeItems(ctx context.Context) (int64, error) {
	return s.items.DeleteAll(ctx)
}

func (s *AdminServiceImpl) DeleteItem(ctx context.Context, id int64) error {
	return s.items.Delete(ctx, id)
}
