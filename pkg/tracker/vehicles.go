package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/timesbus/velio/pkg/fleet"
	"github.com/timesbus/velio/pkg/tracker/feeds"
)

// VehicleResolver maps feed vehicle descriptors onto persistent Vehicle
// records. Identity is keyed by (source, code); the resolver keeps a
// per-pass cache so each vehicle is looked up at most once.
type VehicleResolver struct {
	Repository Repository

	Source          *fleet.Source
	DefaultOperator *fleet.Operator

	// GroupOperators is the set of operators sharing this source's vehicle
	// code namespace, keyed by primary identifier. Empty outside operator
	// group sources.
	GroupOperators map[string]*fleet.Operator

	vehicleCache map[string]*fleet.Vehicle
}

func NewVehicleResolver(repository Repository, source *fleet.Source, defaultOperator *fleet.Operator, groupOperators map[string]*fleet.Operator) *VehicleResolver {
	return &VehicleResolver{
		Repository:      repository,
		Source:          source,
		DefaultOperator: defaultOperator,
		GroupOperators:  groupOperators,

		vehicleCache: map[string]*fleet.Vehicle{},
	}
}

// Prefetch loads all vehicles for the given codes in one query so the
// per-item loop mostly hits the cache.
func (r *VehicleResolver) Prefetch(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	vehicles, err := r.Repository.VehiclesByCodes(ctx, r.Source.Name, codes)
	if err != nil {
		return err
	}

	for _, vehicle := range vehicles {
		r.vehicleCache[vehicle.Code] = vehicle
	}

	return nil
}

// Resolve returns the Vehicle for a descriptor, creating one when the code
// has never been seen on this source. The second return reports whether the
// vehicle was created on this call.
func (r *VehicleResolver) Resolve(ctx context.Context, descriptor feeds.VehicleDescriptor) (*fleet.Vehicle, bool, error) {
	if descriptor.Code == "" {
		return nil, false, fmt.Errorf("descriptor has no vehicle code")
	}

	operatorRef := r.operatorRef(descriptor)

	if vehicle, ok := r.vehicleCache[descriptor.Code]; ok {
		vehicle = r.reresolveOperator(ctx, vehicle, operatorRef)
		if vehicle != nil {
			r.updateMetadata(ctx, vehicle, descriptor)
			return vehicle, false, nil
		}
	}

	vehicle, err := r.Repository.VehicleByCode(ctx, r.Source.Name, descriptor.Code)
	if err == nil {
		r.vehicleCache[descriptor.Code] = vehicle
		r.updateMetadata(ctx, vehicle, descriptor)
		return vehicle, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	vehicle = &fleet.Vehicle{
		PrimaryIdentifier: fleet.VehicleIdentifier(r.Source.Name, descriptor.Code),
		Code:              descriptor.Code,
		FleetCode:         descriptor.FleetCode,
		FleetNumber:       descriptor.FleetNumber,
		Reg:               descriptor.Reg,
		Name:              descriptor.Name,
		OperatorRef:       operatorRef,
		SourceRef:         r.Source.Name,
	}

	created, err := r.Repository.CreateVehicle(ctx, vehicle)
	if err != nil {
		return nil, false, err
	}

	r.vehicleCache[descriptor.Code] = created

	log.Info().Str("vehicle", created.PrimaryIdentifier).Msg("Created vehicle")

	return created, true, nil
}

func (r *VehicleResolver) operatorRef(descriptor feeds.VehicleDescriptor) string {
	if descriptor.OperatorRef != "" {
		return fleet.OperatorIdentifier(descriptor.OperatorRef)
	}
	if r.DefaultOperator != nil {
		return r.DefaultOperator.PrimaryIdentifier
	}
	return ""
}

// reresolveOperator handles a cached vehicle now reporting under a
// different operator. Within an operator group the same code can belong to
// two different physical vehicles, so look for an alternate record in the
// group before trusting the cached one.
func (r *VehicleResolver) reresolveOperator(ctx context.Context, vehicle *fleet.Vehicle, operatorRef string) *fleet.Vehicle {
	if len(r.GroupOperators) == 0 || operatorRef == "" || vehicle.OperatorRef == operatorRef {
		return vehicle
	}

	operatorRefs := make([]string, 0, len(r.GroupOperators))
	for ref := range r.GroupOperators {
		operatorRefs = append(operatorRefs, ref)
	}

	alternate, err := r.Repository.VehicleByOperatorsAndCode(ctx, operatorRefs, vehicle.Code, vehicle.PrimaryIdentifier)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Str("vehicle", vehicle.PrimaryIdentifier).Msg("Failed to re-resolve vehicle operator")
		}
		return vehicle
	}

	r.vehicleCache[vehicle.Code] = alternate
	return alternate
}

// updateMetadata refreshes fleet metadata from the feed. Locked vehicles
// are curated by hand and never touched.
func (r *VehicleResolver) updateMetadata(ctx context.Context, vehicle *fleet.Vehicle, descriptor feeds.VehicleDescriptor) {
	if vehicle.Locked {
		return
	}

	fields := map[string]interface{}{}

	if descriptor.Name != "" && descriptor.Name != vehicle.Name {
		fields["name"] = descriptor.Name
		vehicle.Name = descriptor.Name
	}
	if descriptor.Reg != "" && descriptor.Reg != vehicle.Reg {
		fields["reg"] = descriptor.Reg
		vehicle.Reg = descriptor.Reg
	}
	if descriptor.FleetNumber != "" && descriptor.FleetNumber != vehicle.FleetNumber {
		fields["fleetnumber"] = descriptor.FleetNumber
		vehicle.FleetNumber = descriptor.FleetNumber
	}

	if len(fields) == 0 {
		return
	}

	if err := r.Repository.UpdateVehicle(ctx, vehicle.PrimaryIdentifier, fields); err != nil {
		log.Error().Err(err).Str("vehicle", vehicle.PrimaryIdentifier).Msg("Failed to update vehicle metadata")
	}
}
