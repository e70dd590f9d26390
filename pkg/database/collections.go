package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createVehicleIndexes()
	createJourneyIndexes()
	createScheduleIndexes()
}

func createVehicleIndexes() {
	vehiclesCollection := GetCollection("vehicles")
	vehicleSourceCodeIndexName := "VehicleSourceCode"
	_, err := vehiclesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Options: &options.IndexOptions{
				Name:   &vehicleSourceCodeIndexName,
				Unique: boolPtr(true),
			},
			Keys: bson.D{
				{Key: "sourceref", Value: 1},
				{Key: "code", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "operatorref", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	sourcesCollection := GetCollection("sources")
	_, err = sourcesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createJourneyIndexes() {
	journeysCollection := GetCollection("vehicle_journeys")
	journeyVehicleDepartureIndexName := "JourneyVehicleDepartureRouteName"
	journeyVehicleCodeIndexName := "JourneyVehicleCode"
	_, err := journeysCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Options: &options.IndexOptions{
				Name: &journeyVehicleDepartureIndexName,
			},
			Keys: bson.D{
				{Key: "vehicleref", Value: 1},
				{Key: "departuretime", Value: 1},
				{Key: "routename", Value: 1},
			},
		},
		{
			Options: &options.IndexOptions{
				Name: &journeyVehicleCodeIndexName,
			},
			Keys: bson.D{
				{Key: "vehicleref", Value: 1},
				{Key: "code", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	locationsCollection := GetCollection("vehicle_locations")
	_, err = locationsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "vehicleref", Value: 1},
				{Key: "recordedat", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "journeyref", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "location.coordinates", Value: "2d"}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createScheduleIndexes() {
	operatorsCollection := GetCollection("operators")
	_, err := operatorsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "otheridentifiers", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "operatorgroupref", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	servicesCollection := GetCollection("services")
	serviceNameOperatorRefIndexName := "ServiceNameOperatorRef"
	_, err = servicesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Options: &options.IndexOptions{
				Name: &serviceNameOperatorRefIndexName,
			},
			Keys: bson.D{
				{Key: "servicename", Value: 1},
				{Key: "operatorref", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	tripsCollection := GetCollection("trips")
	tripTicketMachineCodeIndexName := "TripServiceTicketMachineCode"
	_, err = tripsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Options: &options.IndexOptions{
				Name: &tripTicketMachineCodeIndexName,
			},
			Keys: bson.D{
				{Key: "serviceref", Value: 1},
				{Key: "ticketmachinecode", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	stopsCollection := GetCollection("stops")
	_, err = stopsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "otheridentifiers", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	calendarsCollection := GetCollection("calendars")
	_, err = calendarsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func boolPtr(value bool) *bool {
	return &value
}
