package fleet

import "time"

// Service is a scheduled route, read-only to the engine. LocalityRefs lists
// the localities its routes visit, used for the stop-membership matching
// heuristic.
type Service struct {
	PrimaryIdentifier string   `bson:"primaryidentifier"`
	OtherIdentifiers  []string `bson:"otheridentifiers,omitempty"`

	ServiceName string   `bson:"servicename"`
	OtherNames  []string `bson:"othernames,omitempty"`

	OperatorRef string `bson:"operatorref"`

	Current bool `bson:"current"`

	LocalityRefs []string `bson:"localityrefs,omitempty"`

	CreationDateTime     time.Time `bson:"creationdatetime"`
	ModificationDateTime time.Time `bson:"modificationdatetime"`
}

// Trip is one scheduled run of a service, read-only to the engine.
// TicketMachineCode is the feed-facing run code matched against live
// journey codes.
type Trip struct {
	PrimaryIdentifier string `bson:"primaryidentifier"`

	ServiceRef string `bson:"serviceref"`

	TicketMachineCode  string `bson:"ticketmachinecode,omitempty"`
	DestinationDisplay string `bson:"destinationdisplay,omitempty"`

	OperatorRef string `bson:"operatorref,omitempty"`

	CalendarRef string `bson:"calendarref,omitempty"`

	DepartureTime time.Time `bson:"departuretime,omitempty"`
}

// Stop is a boarding point, read-only to the engine.
type Stop struct {
	PrimaryIdentifier string   `bson:"primaryidentifier"`
	OtherIdentifiers  []string `bson:"otheridentifiers,omitempty"`

	PrimaryName string `bson:"primaryname"`

	LocalityRef string `bson:"localityref,omitempty"`
}
