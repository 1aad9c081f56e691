package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Kind names an intent target variant on the wire.
type Kind string

const (
	KindSeedItem Kind = "seed_movie"
	KindCategory Kind = "genre"
	KindQuery    Kind = "query"
	KindPopular  Kind = "popular"
)

// Target is the closed set of things a user can ask recommendations for.
// Only SeedItem, Category, Query and Popular implement it.
type Target interface {
	Kind() Kind
	target()
}

// SeedItem asks for items similar to the one titled Title.
type SeedItem struct{ Title string }

// Category asks for popular items in a named genre.
type Category struct{ Name string }

// Query asks for items matching free text.
type Query struct{ Text string }

// Popular asks for the most popular items overall.
type Popular struct{}

func (SeedItem) Kind() Kind { return KindSeedItem }
func (Category) Kind() Kind { return KindCategory }
func (Query) Kind() Kind    { return KindQuery }
func (Popular) Kind() Kind  { return KindPopular }

func (SeedItem) target() {}
func (Category) target() {}
func (Query) target()    {}
func (Popular) target()  {}

// Intent is the normalized request. It is a value and is not modified after creation.
type Intent struct {
	Target Target
	Count  int
	Region string
}

type intentWire struct {
	Type      Kind   `json:"type"`
	SeedMovie string `json:"seed_movie,omitempty"`
	Genre     string `json:"genre,omitempty"`
	Query     string `json:"query,omitempty"`
	Num       int    `json:"num"`
	Region    string `json:"region"`
}

// MarshalJSON renders the intent as {"type":...,"<variant field>":...,"num":...,"region":...}.
func (i Intent) MarshalJSON() ([]byte, error) {
	w := intentWire{Num: i.Count, Region: i.Region}

	switch t := i.Target.(type) {
	case SeedItem:
		w.Type, w.SeedMovie = KindSeedItem, t.Title
	case Category:
		w.Type, w.Genre = KindCategory, t.Name
	case Query:
		w.Type, w.Query = KindQuery, t.Text
	case Popular:
		w.Type = KindPopular
	default:
		return nil, fmt.Errorf("intent: unsupported target %T", i.Target)
	}

	return json.Marshal(w)
}

// UnmarshalJSON parses the form produced by MarshalJSON.
func (i *Intent) UnmarshalJSON(b []byte) error {
	var w intentWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	switch w.Type {
	case KindSeedItem:
		i.Target = SeedItem{Title: w.SeedMovie}
	case KindCategory:
		i.Target = Category{Name: w.Genre}
	case KindQuery:
		i.Target = Query{Text: w.Query}
	case KindPopular:
		i.Target = Popular{}
	default:
		return fmt.Errorf("intent: unknown type %q", w.Type)
	}

	i.Count, i.Region = w.Num, w.Region

	return nil
}

// IntentRequest is the raw user request. Empty strings mean "not given".
type IntentRequest struct {
	SeedItem string
	Category string
	Query    string
	Count    int
	Region   string
}

// IntentReply carries the normalized intent. Status is always ok.
type IntentReply struct {
	Result
	Intent Intent `json:"intent"`
}

// NewIntent normalizes req. The first non-empty of SeedItem, Category and Query wins;
// with none given the target is Popular.
func NewIntent(req IntentRequest, defaultRegion string) Intent {
	var target Target

	switch {
	case req.SeedItem != "":
		target = SeedItem{Title: req.SeedItem}
	case req.Category != "":
		target = Category{Name: req.Category}
	case req.Query != "":
		target = Query{Text: req.Query}
	default:
		target = Popular{}
	}

	count := req.Count
	if count <= 0 {
		count = DefaultCount
	}

	return Intent{Target: target, Count: count, Region: regionOr(req.Region, defaultRegion)}
}

// IntentHandler turns a raw request into an Intent. It never fails and makes no external calls.
type IntentHandler struct {
	DefaultRegion string
}

func (a IntentHandler) Handle(_ context.Context, req IntentRequest) (IntentReply, error) {
	return IntentReply{Result: okResult(), Intent: NewIntent(req, a.DefaultRegion)}, nil
}

func regionOr(region, def string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return strings.ToUpper(strings.TrimSpace(def))
	}

	return region
}
