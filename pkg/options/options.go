package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group so binaries can compose
// validation and flag registration uniformly.
type IOptions interface {
	// Validate checks the option values entered at the command line.
	Validate() []error

	// AddFlags adds the group's flags to the given FlagSet.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress verifies that addr is a valid "host:port" listen address.
func ValidateAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return nil
}
