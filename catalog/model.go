package catalog

// SortPopularityDesc orders discovery results by descending popularity.
const SortPopularityDesc = "popularity.desc"

// Item is one catalog entry as returned by search, similarity and discovery.
// Optional fields are nil when the catalog omits them.
type Item struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Overview    *string  `json:"overview,omitempty"`
	ReleaseDate *string  `json:"release_date,omitempty"`
	Popularity  *float64 `json:"popularity,omitempty"`
}

// Page is one page of items in provider order.
type Page struct {
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int    `json:"total_results"`
	Results      []Item `json:"results"`
}

// Genre is a named category.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Details extends Item with fields only available on the detail lookup.
type Details struct {
	Item

	Tagline *string `json:"tagline,omitempty"`
	Runtime *int    `json:"runtime,omitempty"`
	Genres  []Genre `json:"genres,omitempty"`
}

// Offer is one provider offering an item in a region.
type Offer struct {
	ProviderID      int64   `json:"provider_id"`
	ProviderName    string  `json:"provider_name"`
	DisplayPriority *int    `json:"display_priority,omitempty"`
	LogoPath        *string `json:"logo_path,omitempty"`
}

// RegionAvailability groups offers per monetization category.
// A nil slice means the catalog reported nothing for that category.
type RegionAvailability struct {
	Link     string  `json:"link,omitempty"`
	Flatrate []Offer `json:"flatrate,omitempty"`
	Rent     []Offer `json:"rent,omitempty"`
	Buy      []Offer `json:"buy,omitempty"`
}

// Availability holds per-region offers for an item, keyed by ISO 3166-1 code.
type Availability struct {
	ItemID  int64                         `json:"id"`
	Regions map[string]RegionAvailability `json:"results"`
}

// Empty reports whether the catalog returned nothing at all for the region.
func (r RegionAvailability) Empty() bool {
	return r.Link == "" && len(r.Flatrate) == 0 && len(r.Rent) == 0 && len(r.Buy) == 0
}

// Region returns the offers for code and whether the region is present.
func (a Availability) Region(code string) (RegionAvailability, bool) {
	r, ok := a.Regions[code]
	return r, ok
}

// CategoryMap maps lower-cased category names to category ids.
type CategoryMap map[string]int64
