package fleet

import "time"

// DataSource records the provenance of an imported record.
type DataSource struct {
	OriginalFormat string `bson:"originalformat"` // eg. gtfs-rt, json, xml, tle
	Provider       string `bson:"provider"`
	Dataset        string `bson:"dataset"`
	Identifier     string `bson:"identifier"`
}

// Source is the engine's record of one external realtime feed.
type Source struct {
	Name string `bson:"name"`
	URL  string `bson:"url,omitempty"`

	LastFetchedAt time.Time `bson:"lastfetchedat,omitempty"`

	CreationDateTime     time.Time `bson:"creationdatetime"`
	ModificationDateTime time.Time `bson:"modificationdatetime"`
}
