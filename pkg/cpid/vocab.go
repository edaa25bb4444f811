package cpid

import "fmt"

// Area is a 4-digit city code used by both the city and region segments.
type Area string

const (
	AreaBeijing      Area = "1101"
	AreaTianjin      Area = "1201"
	AreaShijiazhuang Area = "1301"
	AreaShanghai     Area = "3101"
	AreaHangzhou     Area = "3301"
	AreaGuangzhou    Area = "4401"
)

var areaMap = map[Area]string{
	AreaBeijing:      "beijing",
	AreaTianjin:      "tianjin",
	AreaShijiazhuang: "shijiazhuang",
	AreaShanghai:     "shanghai",
	AreaHangzhou:     "hangzhou",
	AreaGuangzhou:    "guangzhou",
}

// Desc returns the human-readable description, or "" for an unknown code.
func (a Area) Desc() string {
	return areaMap[a]
}

// Valid reports whether the code is in the reference vocabulary.
func (a Area) Valid() bool {
	_, ok := areaMap[a]
	return ok
}

// GetArea resolves a description back to its code.
func GetArea(desc string) (Area, error) {
	for code, d := range areaMap {
		if d == desc {
			return code, nil
		}
	}
	return "", fmt.Errorf("cpid: area desc %q is not found", desc)
}

// Industry is a 2-letter industry code.
type Industry string

const (
	IndustryTelecom   Industry = "tc"
	IndustryComputing Industry = "cp"
	IndustryInternet  Industry = "it"
)

var industryMap = map[Industry]string{
	IndustryTelecom:   "telecommunications",
	IndustryComputing: "computing",
	IndustryInternet:  "internet",
}

func (i Industry) Desc() string {
	return industryMap[i]
}

func (i Industry) Valid() bool {
	_, ok := industryMap[i]
	return ok
}

// ResourceType is a 2-digit compute resource class code.
type ResourceType string

const (
	ResourceTypeHPC         ResourceType = "01"
	ResourceTypeIntelligent ResourceType = "02"
	ResourceTypeGeneral     ResourceType = "03"
)

var resourceTypeMap = map[ResourceType]string{
	ResourceTypeHPC:         "supercomputing",
	ResourceTypeIntelligent: "intelligent-computing",
	ResourceTypeGeneral:     "general-computing",
}

func (rt ResourceType) Desc() string {
	return resourceTypeMap[rt]
}

func (rt ResourceType) Valid() bool {
	_, ok := resourceTypeMap[rt]
	return ok
}

// Zone is a 3-digit availability zone code.
type Zone string

const (
	Zone1 Zone = "501"
	Zone2 Zone = "502"
	Zone3 Zone = "503"
)

var zoneMap = map[Zone]string{
	Zone1: "zone-1",
	Zone2: "zone-2",
	Zone3: "zone-3",
}

func (z Zone) Desc() string {
	return zoneMap[z]
}

func (z Zone) Valid() bool {
	_, ok := zoneMap[z]
	return ok
}

// ServiceType is a 2-digit service class code.
type ServiceType string

const (
	ServiceVirtualMachine  ServiceType = "01"
	ServiceBlockStorage    ServiceType = "02"
	ServiceCloudBackup     ServiceType = "03"
	ServicePhysicalMachine ServiceType = "04"
	ServiceCloudCache      ServiceType = "05"
	ServiceCloudCDN        ServiceType = "06"
)

var serviceTypeMap = map[ServiceType]string{
	ServiceVirtualMachine:  "virtual-machine",
	ServiceBlockStorage:    "block-storage",
	ServiceCloudBackup:     "cloud-backup",
	ServicePhysicalMachine: "physical-machine",
	ServiceCloudCache:      "cloud-cache",
	ServiceCloudCDN:        "cloud-cdn",
}

func (st ServiceType) Desc() string {
	return serviceTypeMap[st]
}

func (st ServiceType) Valid() bool {
	_, ok := serviceTypeMap[st]
	return ok
}
