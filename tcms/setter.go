package tcms

import (
	"strconv"
	"strings"

	"github.com/sarchlab/tcms/train"
)

// tractionSetter applies target-speed commands to the train.
type tractionSetter struct {
	train *train.Train
}

func (s *tractionSetter) Set(payload string) {
	key, value, found := strings.Cut(payload, ":")
	if !found || key != "Set Target Speed" {
		return
	}

	if target, err := strconv.ParseFloat(value, 64); err == nil {
		s.train.TargetSpeed = target
	}
}

// brakeSetter applies service-brake commands to the train.
type brakeSetter struct {
	train *train.Train
}

func (s *brakeSetter) Set(payload string) {
	switch payload {
	case "Apply Brakes":
		s.train.BrakesApplied = true
	case "Release Brakes":
		s.train.BrakesApplied = false
	}
}

// emergencySetter triggers an emergency stop. The payload carries a counter
// suffix, so any "Emergency Stop" prefix triggers.
type emergencySetter struct {
	train *train.Train
}

func (s *emergencySetter) Set(payload string) {
	if strings.HasPrefix(payload, "Emergency Stop") {
		s.train.EmergencyStop = true
	}
}

// doorSetter operates one door. Each instance carries its own bound index.
type doorSetter struct {
	train *train.Train
	index int
}

func (s *doorSetter) Set(payload string) {
	switch {
	case strings.HasPrefix(payload, "Open"):
		s.train.Doors[s.index] = true
	case strings.HasPrefix(payload, "Close"):
		s.train.Doors[s.index] = false
	}
}
