package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Driver is one datasource section of the drivers TOML file.
type Driver struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Zoom     int    `toml:"zoom"`
}

type DriversFile struct {
	Drivers map[string]Driver `toml:"drivers"`
}

// LoadDrivers reads the driver set from a TOML file, or returns the
// compiled-in defaults when no path is configured.
func LoadDrivers(path string) (DriversFile, error) {
	if path == "" {
		return DefaultDrivers(), nil
	}
	var out DriversFile
	if _, err := toml.DecodeFile(path, &out); err != nil {
		return DriversFile{}, fmt.Errorf("decode drivers file %s: %w", path, err)
	}
	if len(out.Drivers) == 0 {
		return DriversFile{}, fmt.Errorf("drivers file %s defines no drivers", path)
	}
	return out, nil
}

// DefaultDrivers enables every compiled-in driver against its public
// endpoint.
func DefaultDrivers() DriversFile {
	return DriversFile{
		Drivers: map[string]Driver{
			"Landsat8": {
				Enabled:  true,
				Endpoint: "https://sat-api.developmentseed.org/stac/search",
			},
			"EarthSearch": {
				Enabled:  true,
				Endpoint: "https://earth-search.aws.element84.com/v1/search",
			},
			"ElevationTiles": {
				Enabled: true,
				Zoom:    8,
			},
		},
	}
}
