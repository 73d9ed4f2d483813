package quotes

import (
	"net/http"
	"strings"
	"time"
)

// TagSeparator joins a record's tags for display.
const TagSeparator = ", "

// Columns is the header row shared by every export format.
var Columns = []string{
	"Author",
	"Quote",
	"About the Author",
	"DOB",
	"Place of Birth",
	"Bio",
	"Tags",
}

// FetchKind distinguishes listing-page fetches from author detail fetches.
type FetchKind string

// Fetch kinds used for logging, throttling and metrics labels.
const (
	KindListing FetchKind = "listing"
	KindDetail  FetchKind = "detail"
)

// Record is one quote entry, keyed by the sequence number assigned when its
// stub was read off a listing page.
type Record struct {
	Sequence     int      `json:"sequence"`
	Author       string   `json:"author"`
	Quote        string   `json:"quote"`
	AboutURL     string   `json:"about_url"`
	DOB          string   `json:"dob"`
	PlaceOfBirth string   `json:"place_of_birth"`
	Bio          string   `json:"bio"`
	Tags         []string `json:"tags"`
}

// Fields returns the display values in Columns order.
func (r Record) Fields() []string {
	return []string{
		r.Author,
		r.Quote,
		r.AboutURL,
		r.DOB,
		r.PlaceOfBirth,
		r.Bio,
		strings.Join(r.Tags, TagSeparator),
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	return r
}

// Stub holds the fields of a quote that are known from the listing page alone.
type Stub struct {
	Author   string
	Quote    string
	Tags     []string
	AboutURL string
}

// Record builds a record for seq carrying only the listing fields.
func (s Stub) Record(seq int) Record {
	return Record{
		Sequence: seq,
		Author:   s.Author,
		Quote:    s.Quote,
		AboutURL: s.AboutURL,
		Tags:     append([]string(nil), s.Tags...),
	}
}

// Author holds the fields scraped from an author detail page.
type Author struct {
	DOB          string
	PlaceOfBirth string
	Bio          string
}

// Merge returns the stub's record for seq completed with the author fields.
func (s Stub) Merge(seq int, a Author) Record {
	rec := s.Record(seq)
	rec.DOB = a.DOB
	rec.PlaceOfBirth = a.PlaceOfBirth
	rec.Bio = a.Bio
	return rec
}

// DetailJob is a scheduled author-page fetch. It carries the reserved
// sequence number and the listing fields so the worker can build the full
// record without touching orchestrator state.
type DetailJob struct {
	Sequence int
	Stub     Stub
	PageURL  string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL  string
	Kind FetchKind
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
