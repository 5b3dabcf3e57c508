package simulation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/casperlundberg/mec-offloading-engine/pkg/models"
)

// StrategyMode selects which engine strategies a run exercises
type StrategyMode string

const (
	ModeChannelSelection StrategyMode = "mec"
	ModeHistory          StrategyMode = "dynamic"
	ModeBoth             StrategyMode = "both"
)

// RandomKind selects the random number generator behind the run
type RandomKind string

const (
	RandomMath      RandomKind = "math"
	RandomRngStream RandomKind = "rngstream"
)

// Config contains simulation parameters
type Config struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	Seed    int64        `json:"seed" yaml:"seed"`
	Random  RandomKind   `json:"random" yaml:"random"`
	Rounds  int          `json:"rounds" yaml:"rounds"`
	Devices int          `json:"devices" yaml:"devices"`
	Workers int          `json:"workers" yaml:"workers"`
	Mode    StrategyMode `json:"strategy" yaml:"strategy"`

	Station models.StationSpec `json:"station" yaml:"station"`
	Profile DeviceProfile      `json:"device_profile" yaml:"device_profile"`
}

// DeviceProfile bounds the randomly generated device inputs (inclusive)
type DeviceProfile struct {
	MinBattery   int     `json:"min_battery" yaml:"min_battery"`
	MaxBattery   int     `json:"max_battery" yaml:"max_battery"`
	MinDataSize  int     `json:"min_data_size" yaml:"min_data_size"`
	MaxDataSize  int     `json:"max_data_size" yaml:"max_data_size"`
	MinLocalTime float64 `json:"min_local_time" yaml:"min_local_time"`
	MaxLocalTime float64 `json:"max_local_time" yaml:"max_local_time"`
}

// DefaultConfig returns a small two-strategy run over a four-port station
func DefaultConfig() Config {
	return Config{
		Name:        "MEC offloading simulation",
		Description: "channel selection and history-driven offloading",
		Seed:        1,
		Random:      RandomMath,
		Rounds:      5,
		Devices:     100,
		Workers:     8,
		Mode:        ModeBoth,
		Station: models.StationSpec{
			Ports:      []int{1, 2, 3, 4},
			Bandwidth:  10,
			LossFactor: 2,
		},
		Profile: DeviceProfile{
			MinBattery:   0,
			MaxBattery:   100,
			MinDataSize:  10,
			MaxDataSize:  200,
			MinLocalTime: 1,
			MaxLocalTime: 60,
		},
	}
}

// LoadConfig reads a YAML or JSON (by extension) config over the defaults
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks the run parameters and the station description
func (c Config) Validate() error {
	var errs models.ValidationErrors

	errs.AddIf(c.Rounds < 1, "Rounds", c.Rounds, "Rounds must be >= 1")
	errs.AddIf(c.Devices < 1, "Devices", c.Devices, "Devices must be >= 1")
	errs.AddIf(c.Workers < 1, "Workers", c.Workers, "Workers must be >= 1")
	errs.AddIf(c.Mode != ModeChannelSelection && c.Mode != ModeHistory && c.Mode != ModeBoth,
		"Strategy", c.Mode, "Strategy must be one of mec, dynamic, both")
	errs.AddIf(c.Random != RandomMath && c.Random != RandomRngStream,
		"Random", c.Random, "Random must be one of math, rngstream")

	p := c.Profile
	errs.AddIf(p.MinBattery < 0 || p.MaxBattery > 100 || p.MinBattery > p.MaxBattery,
		"Profile.Battery", fmt.Sprintf("[%d,%d]", p.MinBattery, p.MaxBattery),
		"battery range must lie within [0,100]")
	errs.AddIf(p.MinDataSize < 0 || p.MinDataSize > p.MaxDataSize,
		"Profile.DataSize", fmt.Sprintf("[%d,%d]", p.MinDataSize, p.MaxDataSize),
		"data size range must be non-negative and ordered")
	errs.AddIf(p.MinLocalTime < 0 || p.MinLocalTime > p.MaxLocalTime,
		"Profile.LocalTime", fmt.Sprintf("[%g,%g]", p.MinLocalTime, p.MaxLocalTime),
		"local time range must be non-negative and ordered")

	if errs.HasErrors() {
		return errs
	}
	return c.Station.Validate()
}

// Strategies returns the engine strategies the mode runs, in execution order
func (c Config) Strategies() []models.Strategy {
	switch c.Mode {
	case ModeChannelSelection:
		return []models.Strategy{models.StrategyChannelSelection}
	case ModeHistory:
		return []models.Strategy{models.StrategyHistory}
	default:
		return []models.Strategy{models.StrategyChannelSelection, models.StrategyHistory}
	}
}
