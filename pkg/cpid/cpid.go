// Package cpid implements the Computing Power Identifier codec.
//
// A CPID is a fixed-width string of at least MinLength characters. The first
// 27 characters are ten segments whose widths are a versioned format contract;
// any change in segment widths is a breaking format version. Decode validates
// every segment against the reference vocabularies, so a stored identifier is
// guaranteed to have been structurally valid and downstream consumers never
// need to re-validate.
package cpid

import (
	"fmt"
	"strconv"
)

// MinLength is the minimum identifier length. Characters past the decoded
// prefix are carried in the stored identifier but do not participate in
// decoding.
const MinLength = 27

// FormatVersion identifies the segment layout below.
const FormatVersion = 1

// Segment boundaries within the 27-character decoded prefix.
const (
	cityStart       = 0
	cityEnd         = 4
	industryEnd     = 6
	organizationEnd = 10
	resourceTypeEnd = 12
	regionEnd       = 16
	zoneEnd         = 19
	serviceTypeEnd  = 21
	computeTotalEnd = 23
	storageTotalEnd = 25
	networkTotalEnd = 27
)

// Attributes is the fully decoded identifier record. Every field is populated
// by a successful Decode; there are no default placeholders.
type Attributes struct {
	City             Area
	Industry         Industry
	Organization     int
	ResourceType     ResourceType
	Region           Area
	AvailabilityZone Zone
	ServiceType      ServiceType
	ComputeTotal     int
	StorageTotal     int
	NetworkTotal     int
}

// DecodeError reports a malformed identifier. Segment names the failing
// sub-field; Value is the offending slice of the input.
type DecodeError struct {
	Segment string
	Value   string
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cpid: invalid %s segment %q: %s", e.Segment, e.Value, e.Reason)
}

// Decode parses and validates a raw identifier string. It is a pure function:
// decoding the same string twice yields identical attribute records. On any
// violation it returns a nil record and a *DecodeError.
func Decode(raw string) (*Attributes, error) {
	if len(raw) < MinLength {
		return nil, &DecodeError{
			Segment: "length",
			Value:   raw,
			Reason:  fmt.Sprintf("need at least %d characters, got %d", MinLength, len(raw)),
		}
	}

	city := Area(raw[cityStart:cityEnd])
	if !city.Valid() {
		return nil, &DecodeError{Segment: "city", Value: string(city), Reason: "unrecognized area code"}
	}

	industry := Industry(raw[cityEnd:industryEnd])
	if !industry.Valid() {
		return nil, &DecodeError{Segment: "industry", Value: string(industry), Reason: "unrecognized industry code"}
	}

	org, err := decodeInt(raw[industryEnd:organizationEnd])
	if err != nil {
		return nil, &DecodeError{Segment: "organization", Value: raw[industryEnd:organizationEnd], Reason: "not a decimal number"}
	}

	resourceType := ResourceType(raw[organizationEnd:resourceTypeEnd])
	if !resourceType.Valid() {
		return nil, &DecodeError{Segment: "resource_type", Value: string(resourceType), Reason: "unrecognized resource type code"}
	}

	region := Area(raw[resourceTypeEnd:regionEnd])
	if !region.Valid() {
		return nil, &DecodeError{Segment: "region", Value: string(region), Reason: "unrecognized area code"}
	}

	zone := Zone(raw[regionEnd:zoneEnd])
	if !zone.Valid() {
		return nil, &DecodeError{Segment: "availability_zone", Value: string(zone), Reason: "unrecognized zone code"}
	}

	serviceType := ServiceType(raw[zoneEnd:serviceTypeEnd])
	if !serviceType.Valid() {
		return nil, &DecodeError{Segment: "service_type", Value: string(serviceType), Reason: "unrecognized service type code"}
	}

	computeTotal, err := decodeInt(raw[serviceTypeEnd:computeTotalEnd])
	if err != nil {
		return nil, &DecodeError{Segment: "compute_total", Value: raw[serviceTypeEnd:computeTotalEnd], Reason: "not a decimal number"}
	}

	storageTotal, err := decodeInt(raw[computeTotalEnd:storageTotalEnd])
	if err != nil {
		return nil, &DecodeError{Segment: "storage_total", Value: raw[computeTotalEnd:storageTotalEnd], Reason: "not a decimal number"}
	}

	networkTotal, err := decodeInt(raw[storageTotalEnd:networkTotalEnd])
	if err != nil {
		return nil, &DecodeError{Segment: "network_total", Value: raw[storageTotalEnd:networkTotalEnd], Reason: "not a decimal number"}
	}

	return &Attributes{
		City:             city,
		Industry:         industry,
		Organization:     org,
		ResourceType:     resourceType,
		Region:           region,
		AvailabilityZone: zone,
		ServiceType:      serviceType,
		ComputeTotal:     computeTotal,
		StorageTotal:     storageTotal,
		NetworkTotal:     networkTotal,
	}, nil
}

// Format renders the attributes back into their 27-character identifier form.
// Format(Decode(s)) equals s[:MinLength] for every valid s.
func (a *Attributes) Format() string {
	return fmt.Sprintf("%s%s%04d%s%s%s%s%02d%02d%02d",
		a.City, a.Industry, a.Organization, a.ResourceType,
		a.Region, a.AvailabilityZone, a.ServiceType,
		a.ComputeTotal, a.StorageTotal, a.NetworkTotal)
}

// decodeInt parses a fixed-width decimal segment. strconv accepts leading
// signs and underscores in some bases, so reject anything but ASCII digits
// up front.
func decodeInt(s string) (int, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("non-digit character %q", s[i])
		}
	}
	return strconv.Atoi(s)
}
