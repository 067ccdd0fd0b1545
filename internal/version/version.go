package version

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// Version is the semantic version of webtermd.
const Version = "0.3.0"

// Product is the name advertised in the Server response header.
const Product = "webtermd"

// Current returns the current version as a parsed version object
// Panics if Version constant is not a valid semantic version
func Current() *version.Version {
	v, err := version.NewVersion(Version)
	if err != nil {
		panic(fmt.Sprintf("invalid version constant %q: %v", Version, err))
	}
	return v
}

// String returns the current version in canonical form
func String() string {
	return Current().String()
}

// ServerHeader returns the value sent in the Server header of every HTTP response
func ServerHeader() string {
	return fmt.Sprintf("%s/%s", Product, String())
}
