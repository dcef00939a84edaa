package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	// VerifyEveryTicks runs the drift check over every container. 0 disables it.
	VerifyEveryTicks   int  `yaml:"verify_every_ticks"`
	SnapshotEveryTicks int  `yaml:"snapshot_every_ticks"`
	RepairDrift        bool `yaml:"repair_drift"`

	// StarterRooms are catalog kinds spawned as roots when a world starts fresh.
	StarterRooms []string `yaml:"starter_rooms"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         5,
		VerifyEveryTicks:   300,
		SnapshotEveryTicks: 3000,
		RepairDrift:        true,
		StarterRooms:       []string{"ROOM"},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be > 0")
	}
	if t.VerifyEveryTicks < 0 || t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("tick intervals must be >= 0")
	}
	return nil
}
