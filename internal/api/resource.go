package api

import (
	"strings"

	"github.com/tonimelisma/drive-mirror/internal/ident"
)

const resourcePrefix = "drives/"
const resourceSuffix = "/root"

// ResourceForDrive builds the opaque "watched resource" string for a
// drive id, in the `drives/{id}/root` shape used for drive item
// resources, minus the leading slash since the resource is treated as an
// opaque string rather than a URL path. Exported so cmd/driftd can
// derive the same resource string for the subscription renewal loop.
func ResourceForDrive(driveID ident.ID) string {
	return resourcePrefix + driveID.String() + resourceSuffix
}

// DriveIDFromResource reverses ResourceForDrive, for recovering the
// drive id carried by an inbound notification's resource field.
func DriveIDFromResource(resource string) (ident.ID, bool) {
	if !strings.HasPrefix(resource, resourcePrefix) || !strings.HasSuffix(resource, resourceSuffix) {
		return ident.ID{}, false
	}

	raw := strings.TrimSuffix(strings.TrimPrefix(resource, resourcePrefix), resourceSuffix)
	if raw == "" {
		return ident.ID{}, false
	}

	return ident.New(raw), true
}
