package inmemory

import "github.com/next-trace/scg-recommender/catalog"

func ptr[T any](v T) *T { return &v }

func offer(id int64, name string, prio int) catalog.Offer {
	return catalog.Offer{ProviderID: id, ProviderName: name, DisplayPriority: ptr(prio)}
}

// Demo returns a small seeded catalog: a Batman search, films similar to Batman,
// Comedy and Drama genres (no Action), a popular list and US/GB availability.
func Demo() *Catalog {
	c := New()

	c.AddItems(
		catalog.Item{ID: 268, Title: "Batman", Overview: ptr("The Dark Knight of Gotham City begins his war on crime."), ReleaseDate: ptr("1989-06-23"), Popularity: ptr(41.5)},
		catalog.Item{ID: 364, Title: "Batman Returns", ReleaseDate: ptr("1992-06-19"), Popularity: ptr(30.2)},
		catalog.Item{ID: 414, Title: "Batman Forever", ReleaseDate: ptr("1995-06-16"), Popularity: ptr(25.7)},
		catalog.Item{ID: 155, Title: "The Dark Knight", ReleaseDate: ptr("2008-07-16"), Popularity: ptr(88.1)},
		catalog.Item{ID: 272, Title: "Batman Begins", ReleaseDate: ptr("2005-06-10"), Popularity: ptr(60.4)},
		catalog.Item{ID: 1359, Title: "American Psycho", ReleaseDate: ptr("2000-04-13")},
		catalog.Item{ID: 9806, Title: "The Incredibles", Popularity: ptr(70.0)},
		catalog.Item{ID: 8363, Title: "Superbad", Popularity: ptr(35.0)},
		catalog.Item{ID: 120467, Title: "The Grand Budapest Hotel", Popularity: ptr(40.0)},
		catalog.Item{ID: 278, Title: "The Shawshank Redemption", Popularity: ptr(99.0)},
	)

	c.SetSearch("Batman", 268, 364, 414, 272)
	c.SetSimilar(268, 364, 414, 155, 272, 1359)
	c.SetCategory("Comedy", 35, 120467, 8363)
	c.SetCategory("Drama", 18, 278, 1359)
	c.SetPopular(278, 155, 9806, 272, 268, 120467)

	c.SetAvailability(268, map[string]catalog.RegionAvailability{
		"US": {Flatrate: []catalog.Offer{offer(384, "Max", 2)}, Rent: []catalog.Offer{offer(2, "Apple TV", 4), offer(3, "Google Play Movies", 6)}},
		"GB": {Buy: []catalog.Offer{offer(10, "Amazon Video", 5)}},
	})
	c.SetAvailability(364, map[string]catalog.RegionAvailability{
		"US": {Rent: []catalog.Offer{offer(2, "Apple TV", 4)}, Buy: []catalog.Offer{offer(2, "Apple TV", 4)}},
	})
	c.SetAvailability(155, map[string]catalog.RegionAvailability{
		"US": {Flatrate: []catalog.Offer{offer(384, "Max", 2)}},
		"GB": {Flatrate: []catalog.Offer{offer(8, "Netflix", 1)}},
	})
	c.SetAvailability(278, map[string]catalog.RegionAvailability{
		"US": {Flatrate: []catalog.Offer{offer(8, "Netflix", 1)}},
	})

	return c
}
