package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
)

func newTestResolver(t *testing.T, repository *memoryRepository) *VehicleResolver {
	source, err := repository.GetOrCreateSource(context.Background(), "Test Source", "")
	require.NoError(t, err)

	operator, err := repository.GetOrCreateOperator(context.Background(), fleet.OperatorIdentifier("TEST"), "Test Operator")
	require.NoError(t, err)

	return NewVehicleResolver(repository, source, operator, nil)
}

func TestVehicleResolverCreatesOnFirstSight(t *testing.T) {
	repository := newMemoryRepository()
	resolver := newTestResolver(t, repository)

	vehicle, created, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{Code: "AB123"})
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, "VEHICLE:Test Source:AB123", vehicle.PrimaryIdentifier)
	assert.Equal(t, "GB:NOC:TEST", vehicle.OperatorRef)
	assert.Equal(t, "Test Source", vehicle.SourceRef)
}

func TestVehicleResolverIdentityIsStable(t *testing.T) {
	repository := newMemoryRepository()
	resolver := newTestResolver(t, repository)

	first, created, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{Code: "AB123"})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{Code: "AB123"})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.PrimaryIdentifier, second.PrimaryIdentifier)
	assert.Len(t, repository.vehicles, 1)
}

func TestVehicleResolverScopesIdentityToSource(t *testing.T) {
	repository := newMemoryRepository()

	sourceA, _ := repository.GetOrCreateSource(context.Background(), "Source A", "")
	sourceB, _ := repository.GetOrCreateSource(context.Background(), "Source B", "")

	resolverA := NewVehicleResolver(repository, sourceA, nil, nil)
	resolverB := NewVehicleResolver(repository, sourceB, nil, nil)

	vehicleA, _, err := resolverA.Resolve(context.Background(), feeds.VehicleDescriptor{Code: "AB123"})
	require.NoError(t, err)
	vehicleB, _, err := resolverB.Resolve(context.Background(), feeds.VehicleDescriptor{Code: "AB123"})
	require.NoError(t, err)

	assert.NotEqual(t, vehicleA.PrimaryIdentifier, vehicleB.PrimaryIdentifier)
	assert.Len(t, repository.vehicles, 2)
}

func TestVehicleResolverRejectsMissingCode(t *testing.T) {
	repository := newMemoryRepository()
	resolver := newTestResolver(t, repository)

	_, _, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{})
	assert.Error(t, err)
}

func TestVehicleResolverUpdatesMetadata(t *testing.T) {
	repository := newMemoryRepository()
	resolver := newTestResolver(t, repository)

	_, _, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{Code: "25544"})
	require.NoError(t, err)

	vehicle, _, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{
		Code: "25544",
		Name: "ISS (ZARYA)",
	})
	require.NoError(t, err)

	assert.Equal(t, "ISS (ZARYA)", vehicle.Name)
	assert.Equal(t, "ISS (ZARYA)", repository.vehicles[vehicle.PrimaryIdentifier].Name)
}

func TestVehicleResolverRespectsLockedVehicles(t *testing.T) {
	repository := newMemoryRepository()
	resolver := newTestResolver(t, repository)

	created, _, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{Code: "AB123", Name: "Curated Name"})
	require.NoError(t, err)

	repository.vehicles[created.PrimaryIdentifier].Locked = true

	vehicle, _, err := resolver.Resolve(context.Background(), feeds.VehicleDescriptor{
		Code: "AB123",
		Name: "Feed Name",
	})
	require.NoError(t, err)

	assert.Equal(t, "Curated Name", vehicle.Name)
}

func TestVehicleResolverReresolvesOperatorWithinGroup(t *testing.T) {
	repository := newMemoryRepository()
	ctx := context.Background()

	source, _ := repository.GetOrCreateSource(ctx, "Test Source", "")

	operatorA, _ := repository.GetOrCreateOperator(ctx, "GB:NOC:SCLK", "Lakes")
	operatorB, _ := repository.GetOrCreateOperator(ctx, "GB:NOC:SCMN", "Manchester")
	operatorA.OperatorGroupRef = "GB:GROUP:TEST"
	operatorB.OperatorGroupRef = "GB:GROUP:TEST"

	groupOperators := map[string]*fleet.Operator{
		operatorA.PrimaryIdentifier: operatorA,
		operatorB.PrimaryIdentifier: operatorB,
	}

	// Two physical vehicles share the code across the group's operators
	repository.vehicles["VEHICLE:Test Source:1234"] = &fleet.Vehicle{
		PrimaryIdentifier: "VEHICLE:Test Source:1234",
		Code:              "1234",
		SourceRef:         "Test Source",
		OperatorRef:       "GB:NOC:SCLK",
	}
	repository.vehicles["VEHICLE:Other Source:1234"] = &fleet.Vehicle{
		PrimaryIdentifier: "VEHICLE:Other Source:1234",
		Code:              "1234",
		SourceRef:         "Other Source",
		OperatorRef:       "GB:NOC:SCMN",
	}

	resolver := NewVehicleResolver(repository, source, nil, groupOperators)

	require.NoError(t, resolver.Prefetch(ctx, []string{"1234"}))

	vehicle, created, err := resolver.Resolve(ctx, feeds.VehicleDescriptor{
		Code:        "1234",
		OperatorRef: "SCMN",
	})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "VEHICLE:Other Source:1234", vehicle.PrimaryIdentifier)
}

func TestVehicleResolverPrefetchAvoidsLookups(t *testing.T) {
	repository := newMemoryRepository()
	resolver := newTestResolver(t, repository)
	ctx := context.Background()

	_, _, err := resolver.Resolve(ctx, feeds.VehicleDescriptor{Code: "AB123"})
	require.NoError(t, err)

	fresh := newTestResolver(t, repository)
	require.NoError(t, fresh.Prefetch(ctx, []string{"AB123"}))

	vehicle, created, err := fresh.Resolve(ctx, feeds.VehicleDescriptor{Code: "AB123"})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "VEHICLE:Test Source:AB123", vehicle.PrimaryIdentifier)
}
