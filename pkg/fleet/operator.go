package fleet

import (
	"fmt"
	"time"
)

const OperatorIDFormat = "GB:NOC:%s"

type Operator struct {
	PrimaryIdentifier string   `bson:"primaryidentifier"`
	OtherIdentifiers  []string `bson:"otheridentifiers,omitempty"`

	PrimaryName string `bson:"primaryname"`

	OperatorGroupRef string `bson:"operatorgroupref,omitempty"`

	CreationDateTime     time.Time `bson:"creationdatetime"`
	ModificationDateTime time.Time `bson:"modificationdatetime"`
}

func OperatorIdentifier(noc string) string {
	return fmt.Sprintf(OperatorIDFormat, noc)
}

// OperatorGroup is a set of operators sharing one vehicle-code namespace,
// for example a merged umbrella company. Vehicle identity disambiguation is
// scoped to the group.
type OperatorGroup struct {
	Identifier string `bson:"identifier"`
	Name       string `bson:"name"`

	CreationDateTime     time.Time `bson:"creationdatetime"`
	ModificationDateTime time.Time `bson:"modificationdatetime"`
}
