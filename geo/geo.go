// Package geo exposes a process-wide, read-only phone region lookup. The
// underlying dataset is expensive to build, so it is initialized at most
// once and never mutated afterwards, which makes it safe for concurrent
// readers without locking.
package geo

import (
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// ErrUnavailable is returned when the lookup dataset could not be built.
// Callers should treat the feature as unavailable rather than failing the
// request.
var ErrUnavailable = errors.New("geo lookup is unavailable", errors.CategoryInternal).
	WithTextCode("GEO_UNAVAILABLE").
	WithCode(errors.CodeInternal)

var (
	once     sync.Once
	instance *Resolver
	initErr  error
)

// Resolver answers region questions about phone numbers. Immutable after
// construction.
type Resolver struct {
	regions map[string]struct{}
}

// Default returns the shared Resolver, building it on first use.
func Default() (*Resolver, error) {
	once.Do(func() {
		instance, initErr = newResolver()
	})

	if initErr != nil {
		return nil, ErrUnavailable
	}

	return instance, nil
}

func newResolver() (*Resolver, error) {
	supported := phonenumbers.GetSupportedRegions()
	if len(supported) == 0 {
		return nil, errors.New("phone metadata has no supported regions", errors.CategoryInternal)
	}

	regions := make(map[string]struct{}, len(supported))
	for region := range supported {
		regions[region] = struct{}{}
	}

	return &Resolver{regions: regions}, nil
}

// Region resolves the ISO region code for a phone number. The default
// region is used for numbers without an international prefix.
func (r *Resolver) Region(number, defaultRegion string) (string, error) {
	parsed, err := phonenumbers.Parse(number, defaultRegion)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryValidation, "could not parse phone number").
			WithCode(errors.CodeBadRequest)
	}

	region := phonenumbers.GetRegionCodeForNumber(parsed)
	if region == "" {
		return "", errors.New("phone number has no resolvable region", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	return region, nil
}

// SupportsRegion reports whether the dataset covers the given region code.
func (r *Resolver) SupportsRegion(region string) bool {
	_, ok := r.regions[region]
	return ok
}

// ValidNumber reports whether a phone number parses and is valid for its
// region.
func (r *Resolver) ValidNumber(number, defaultRegion string) bool {
	parsed, err := phonenumbers.Parse(number, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}
