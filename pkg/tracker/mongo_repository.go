package tracker

import (
	"context"
	"time"

	"github.com/timesbus/velio/pkg/database"
	"github.com/timesbus/velio/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository implements Repository on the shared MongoDB connection.
// Creates are upserts keyed on the primary identifier so two trackers
// racing to create the same record converge on a single document.
type MongoRepository struct{}

func NewMongoRepository() *MongoRepository {
	return &MongoRepository{}
}

func (r *MongoRepository) GetOrCreateSource(ctx context.Context, name string, url string) (*fleet.Source, error) {
	sourcesCollection := database.GetCollection("sources")
	now := time.Now()

	_, err := sourcesCollection.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{
			"name":             name,
			"url":              url,
			"creationdatetime": now,
		}, "$set": bson.M{
			"modificationdatetime": now,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}

	var source fleet.Source
	if err := sourcesCollection.FindOne(ctx, bson.M{"name": name}).Decode(&source); err != nil {
		return nil, err
	}

	return &source, nil
}

func (r *MongoRepository) UpdateSourceFetched(ctx context.Context, name string, fetchedAt time.Time) error {
	sourcesCollection := database.GetCollection("sources")

	_, err := sourcesCollection.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$set": bson.M{
			"lastfetchedat":        fetchedAt,
			"modificationdatetime": time.Now(),
		}})

	return err
}

func (r *MongoRepository) GetOrCreateOperator(ctx context.Context, identifier string, name string) (*fleet.Operator, error) {
	operatorsCollection := database.GetCollection("operators")
	now := time.Now()

	_, err := operatorsCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": identifier},
		bson.M{"$setOnInsert": bson.M{
			"primaryidentifier":    identifier,
			"primaryname":          name,
			"creationdatetime":     now,
			"modificationdatetime": now,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}

	var operator fleet.Operator
	if err := operatorsCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&operator); err != nil {
		return nil, err
	}

	return &operator, nil
}

func (r *MongoRepository) OperatorsInGroup(ctx context.Context, groupIdentifier string) ([]*fleet.Operator, error) {
	operatorsCollection := database.GetCollection("operators")

	cursor, err := operatorsCollection.Find(ctx, bson.M{"operatorgroupref": groupIdentifier})
	if err != nil {
		return nil, err
	}

	var operators []*fleet.Operator
	if err := cursor.All(ctx, &operators); err != nil {
		return nil, err
	}

	return operators, nil
}

func (r *MongoRepository) VehiclesByCodes(ctx context.Context, sourceRef string, codes []string) ([]*fleet.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	cursor, err := vehiclesCollection.Find(ctx, bson.M{
		"sourceref": sourceRef,
		"code":      bson.M{"$in": codes},
	})
	if err != nil {
		return nil, err
	}

	var vehicles []*fleet.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}

	return vehicles, nil
}

func (r *MongoRepository) VehicleByCode(ctx context.Context, sourceRef string, code string) (*fleet.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	var vehicle fleet.Vehicle
	err := vehiclesCollection.FindOne(ctx, bson.M{
		"sourceref": sourceRef,
		"code":      code,
	}).Decode(&vehicle)

	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &vehicle, nil
}

func (r *MongoRepository) VehicleByOperatorsAndCode(ctx context.Context, operatorRefs []string, code string, excludeIdentifier string) (*fleet.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	query := bson.M{
		"operatorref": bson.M{"$in": operatorRefs},
		"$or": bson.A{
			bson.M{"code": code},
			bson.M{"fleetcode": code},
		},
	}
	if excludeIdentifier != "" {
		query["primaryidentifier"] = bson.M{"$ne": excludeIdentifier}
	}

	var vehicle fleet.Vehicle
	err := vehiclesCollection.FindOne(ctx, query).Decode(&vehicle)

	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &vehicle, nil
}

func (r *MongoRepository) CreateVehicle(ctx context.Context, vehicle *fleet.Vehicle) (*fleet.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	now := time.Now()
	vehicle.CreationDateTime = now
	vehicle.ModificationDateTime = now

	_, err := vehiclesCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": vehicle.PrimaryIdentifier},
		bson.M{"$setOnInsert": vehicle},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}

	var created fleet.Vehicle
	if err := vehiclesCollection.FindOne(ctx, bson.M{"primaryidentifier": vehicle.PrimaryIdentifier}).Decode(&created); err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *MongoRepository) UpdateVehicle(ctx context.Context, identifier string, fields map[string]interface{}) error {
	vehiclesCollection := database.GetCollection("vehicles")

	updateDocument := bson.M{}
	for field, value := range fields {
		updateDocument[field] = value
	}
	updateDocument["modificationdatetime"] = time.Now()

	_, err := vehiclesCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": identifier},
		bson.M{"$set": updateDocument})

	return err
}

func (r *MongoRepository) JourneyByIdentifier(ctx context.Context, identifier string) (*fleet.VehicleJourney, error) {
	journeysCollection := database.GetCollection("vehicle_journeys")

	var journey fleet.VehicleJourney
	err := journeysCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&journey)

	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &journey, nil
}

func (r *MongoRepository) JourneyByCode(ctx context.Context, vehicleRef string, code string) (*fleet.VehicleJourney, error) {
	journeysCollection := database.GetCollection("vehicle_journeys")

	var journey fleet.VehicleJourney
	err := journeysCollection.FindOne(ctx, bson.M{
		"vehicleref": vehicleRef,
		"code":       code,
	}).Decode(&journey)

	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &journey, nil
}

func (r *MongoRepository) JourneyByDeparture(ctx context.Context, vehicleRef string, departureTime time.Time, routeName string) (*fleet.VehicleJourney, error) {
	journeysCollection := database.GetCollection("vehicle_journeys")

	query := bson.M{
		"vehicleref":    vehicleRef,
		"departuretime": departureTime,
	}
	if routeName != "" {
		query["routename"] = routeName
	}

	var journey fleet.VehicleJourney
	err := journeysCollection.FindOne(ctx, query).Decode(&journey)

	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &journey, nil
}

func (r *MongoRepository) CreateJourney(ctx context.Context, journey *fleet.VehicleJourney) (*fleet.VehicleJourney, error) {
	journeysCollection := database.GetCollection("vehicle_journeys")

	now := time.Now()
	journey.CreationDateTime = now
	journey.ModificationDateTime = now

	_, err := journeysCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": journey.PrimaryIdentifier},
		bson.M{"$setOnInsert": journey},
		options.Update().SetUpsert(true))
	if err != nil {
		return nil, err
	}

	var created fleet.VehicleJourney
	if err := journeysCollection.FindOne(ctx, bson.M{"primaryidentifier": journey.PrimaryIdentifier}).Decode(&created); err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *MongoRepository) UpdateJourney(ctx context.Context, identifier string, fields map[string]interface{}) error {
	journeysCollection := database.GetCollection("vehicle_journeys")

	updateDocument := bson.M{}
	for field, value := range fields {
		updateDocument[field] = value
	}
	updateDocument["modificationdatetime"] = time.Now()

	_, err := journeysCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": identifier},
		bson.M{"$set": updateDocument})

	return err
}

func (r *MongoRepository) CreateLocations(ctx context.Context, locations []*fleet.VehicleLocation) error {
	if len(locations) == 0 {
		return nil
	}

	locationsCollection := database.GetCollection("vehicle_locations")

	documents := make([]interface{}, len(locations))
	for i, location := range locations {
		documents[i] = location
	}

	_, err := locationsCollection.InsertMany(ctx, documents)
	return err
}

func (r *MongoRepository) CurrentServices(ctx context.Context, operatorRefs []string) ([]*fleet.Service, error) {
	servicesCollection := database.GetCollection("services")

	cursor, err := servicesCollection.Find(ctx, bson.M{
		"operatorref": bson.M{"$in": operatorRefs},
		"current":     true,
	})
	if err != nil {
		return nil, err
	}

	var services []*fleet.Service
	if err := cursor.All(ctx, &services); err != nil {
		return nil, err
	}

	return services, nil
}

func (r *MongoRepository) StopByRef(ctx context.Context, stopRef string) (*fleet.Stop, error) {
	stopsCollection := database.GetCollection("stops")

	var stop fleet.Stop
	err := stopsCollection.FindOne(ctx, bson.M{
		"$or": bson.A{
			bson.M{"primaryidentifier": stopRef},
			bson.M{"otheridentifiers": stopRef},
		},
	}).Decode(&stop)

	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return &stop, nil
}

func (r *MongoRepository) TripsByTicketMachineCode(ctx context.Context, code string, serviceRefs []string) ([]*fleet.Trip, error) {
	tripsCollection := database.GetCollection("trips")

	query := bson.M{"ticketmachinecode": code}
	if len(serviceRefs) > 0 {
		query["serviceref"] = bson.M{"$in": serviceRefs}
	}

	cursor, err := tripsCollection.Find(ctx, query)
	if err != nil {
		return nil, err
	}

	var trips []*fleet.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}

	return trips, nil
}

func (r *MongoRepository) CalendarsByRefs(ctx context.Context, calendarRefs []string) (map[string]*fleet.Calendar, error) {
	calendarsCollection := database.GetCollection("calendars")

	cursor, err := calendarsCollection.Find(ctx, bson.M{
		"primaryidentifier": bson.M{"$in": calendarRefs},
	})
	if err != nil {
		return nil, err
	}

	var calendars []*fleet.Calendar
	if err := cursor.All(ctx, &calendars); err != nil {
		return nil, err
	}

	calendarsByRef := map[string]*fleet.Calendar{}
	for _, calendar := range calendars {
		calendarsByRef[calendar.PrimaryIdentifier] = calendar
	}

	return calendarsByRef, nil
}
