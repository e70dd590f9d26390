package feeds

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const irishRailXML = `<?xml version="1.0" encoding="utf-8"?>
<ArrayOfObjTrainPositions xmlns="http://api.irishrail.ie/realtime/">
  <objTrainPositions>
    <TrainStatus>R</TrainStatus>
    <TrainLatitude>53.3498</TrainLatitude>
    <TrainLongitude>-6.2603</TrainLongitude>
    <TrainCode>E257</TrainCode>
    <PublicMessage>E257\n20:03 - Malahide to Bray(1 mins late)\nDeparted Connolly next stop Tara St</PublicMessage>
    <Direction>Southbound</Direction>
  </objTrainPositions>
  <objTrainPositions>
    <TrainStatus>N</TrainStatus>
    <TrainLatitude>0</TrainLatitude>
    <TrainLongitude>0</TrainLongitude>
    <TrainCode>P537</TrainCode>
    <PublicMessage>P537\nCobh to Cork</PublicMessage>
    <Direction></Direction>
  </objTrainPositions>
</ArrayOfObjTrainPositions>`

func parseIrishRail(t *testing.T) []*IrishRailTrain {
	var response irishRailResponse
	require.NoError(t, xml.Unmarshal([]byte(irishRailXML), &response))
	require.Len(t, response.Trains, 2)
	return response.Trains
}

func TestIrishRailParsesTrainPositions(t *testing.T) {
	trains := parseIrishRail(t)

	assert.Equal(t, "E257", trains[0].TrainCode)
	assert.Equal(t, 53.3498, trains[0].TrainLatitude)
	assert.Equal(t, -6.2603, trains[0].TrainLongitude)
}

func TestIrishRailJourneyFromPublicMessage(t *testing.T) {
	feed := &IrishRailFeed{Name: "Irish Rail"}
	trains := parseIrishRail(t)

	journey := feed.DescribeJourney(trains[0])

	assert.Equal(t, "Southbou", journey.Direction)
	assert.Equal(t, "Southbound", journey.Destination)
	assert.Equal(t, "Malahide to Bray(1 mins late)", journey.RouteName)
}

func TestIrishRailRouteWithoutTimestamp(t *testing.T) {
	feed := &IrishRailFeed{Name: "Irish Rail"}
	trains := parseIrishRail(t)

	journey := feed.DescribeJourney(trains[1])

	assert.Equal(t, "Cobh to Cork", journey.RouteName)
}

func TestIrishRailSkipsNullIslandPositions(t *testing.T) {
	feed := &IrishRailFeed{Name: "Irish Rail"}
	trains := parseIrishRail(t)

	assert.NotNil(t, feed.DescribeLocation(trains[0]))
	assert.Nil(t, feed.DescribeLocation(trains[1]))
}

func TestIrishRailDestinationFromTerminatedMessage(t *testing.T) {
	destination := destinationFromMessage("TERMINATED Bray at 21:18")
	assert.Equal(t, "Bray", destination)
}

func TestIrishRailDestinationFromArrivedMessage(t *testing.T) {
	destination := destinationFromMessage("Arrived Mallow next stop Cork")
	assert.Equal(t, "Cork", destination)
}
