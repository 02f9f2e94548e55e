package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindConfig overlays values from an optional config file and from the
// environment onto fs. Flags set explicitly on the command line win; for
// everything else the config file and AGRISIGHT_* environment variables fill
// in, falling back to the flag defaults.
func BindConfig(fs *pflag.FlagSet, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix("AGRISIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %q: %w", configFile, err)
		}
	}

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, flagValue(v.Get(f.Name))); err != nil {
			bindErr = fmt.Errorf("apply config value for --%s: %w", f.Name, err)
		}
	})

	return bindErr
}

func flagValue(raw any) string {
	switch val := raw.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}
