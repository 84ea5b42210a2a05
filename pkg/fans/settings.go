// Persisted fan settings binding
//
// The subsystem owns one NVS record: per-fan port assignment, the
// spindle-link mask and the fan 0 off-delay. Port assignments take
// effect at the next boot (ports are claimed exclusively, once);
// delay and link changes are live immediately.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package fans

import (
	"errors"
	"math"

	"grbl-fans-go/pkg/hal"
	"grbl-fans-go/pkg/nvs"
	"grbl-fans-go/pkg/status"
)

// MaxOffDelayMins bounds the fan 0 off-delay setting.
const MaxOffDelayMins = 30.0

const (
	warnInitFailed = "Fans plugin failed to initialize!"
	warnNoPort     = "Fans plugin: configured port number(s) not available"
)

// Settings is the persisted configuration record.
type Settings struct {
	// Ports assigns each fan a pool port; hal.PortNone disables the
	// fan's output.
	Ports [MaxFans]hal.Port `yaml:"ports"`

	// SpindleLink bit i makes fan i follow spindle enable.
	SpindleLink uint32 `yaml:"spindle_link"`

	// OffDelayMins delays fan 0 turn-off after spindle stop or
	// program end; 0 disables the delay. Fractional minutes allowed.
	OffDelayMins float64 `yaml:"fan0_off_delay_mins"`
}

// Load reads the persisted record (restoring defaults if it is absent
// or corrupt), claims ports and, if at least one fan bound, installs
// all plugin hooks. With zero fans bound the plugin stays inert and
// every command falls through to the rest of the chain.
func (s *Subsystem) Load() error {
	var rec Settings
	if err := s.store.ReadRecord(settingsKey, &rec); err != nil {
		if !errors.Is(err, nvs.ErrNotFound) {
			s.log.WithError(err).Warn("settings unreadable, restoring defaults")
		}
		if err := s.Restore(); err != nil {
			return err
		}
	} else {
		s.mu.Lock()
		s.setting = s.sanitize(rec)
		s.mu.Unlock()
	}

	failures := s.claimPorts()

	s.mu.Lock()
	bound := s.bound
	installed := s.installed
	s.mu.Unlock()
	if bound == 0 {
		s.host.EnqueueMessage(warnInitFailed)
		s.log.Warn("no fan could be bound to an output, staying inert")
		return nil
	}

	// One warning covers both unclaimable configured ports and a pool
	// too small for the requested fan count.
	needed := s.n
	if s.cfg.Fan0Spindle {
		needed--
	}
	if failures > 0 || s.host.Ports.NumDigitalOut() < needed {
		s.host.EnqueueMessage(warnNoPort)
	}
	if !installed {
		s.mu.Lock()
		s.install()
		s.mu.Unlock()
	}
	s.log.WithFields(map[string]interface{}{"fans": s.n, "bound": bound}).Info("configured")
	return nil
}

// Save writes the current record verbatim.
func (s *Subsystem) Save() error {
	s.mu.Lock()
	rec := s.setting
	s.mu.Unlock()
	return s.store.WriteRecord(settingsKey, &rec)
}

// Restore recomputes defaults and persists them: no spindle link, no
// delay, the highest-numbered free ports assigned fan by fan from the
// highest fan index down.
func (s *Subsystem) Restore() error {
	nPorts := s.host.Ports.NumDigitalOut()
	var rec Settings
	for i := range rec.Ports {
		rec.Ports[i] = hal.PortNone
	}
	base := nPorts - s.n
	for idx := s.n - 1; idx >= 0; idx-- {
		if idx == 0 && s.cfg.Fan0Spindle {
			continue
		}
		if base+idx >= 0 {
			rec.Ports[idx] = hal.Port(base + idx)
		}
	}
	s.mu.Lock()
	s.setting = rec
	s.mu.Unlock()
	return s.store.WriteRecord(settingsKey, &rec)
}

// sanitize clamps a loaded record to this build's fan count and the
// delay bound.
func (s *Subsystem) sanitize(rec Settings) Settings {
	for idx := s.n; idx < MaxFans; idx++ {
		rec.Ports[idx] = hal.PortNone
	}
	rec.SpindleLink &= uint32(1<<uint(s.n)) - 1
	if rec.OffDelayMins < 0 {
		rec.OffDelayMins = 0
	}
	if rec.OffDelayMins > MaxOffDelayMins {
		rec.OffDelayMins = MaxOffDelayMins
	}
	return rec
}

// claimPorts binds each configured fan to its persisted port, highest
// index first. Out-of-range values and rejected claims leave the fan
// permanently unassigned for this boot and are counted; the disabled
// sentinel is honored silently. Returns the failure count.
func (s *Subsystem) claimPorts() int {
	nPorts := s.host.Ports.NumDigitalOut()

	s.mu.Lock()
	rec := s.setting
	s.mu.Unlock()

	failures := 0
	bound := 0
	var ports [MaxFans]hal.Port
	for i := range ports {
		ports[i] = hal.PortNone
	}

	for idx := s.n - 1; idx >= 0; idx-- {
		if idx == 0 && s.cfg.Fan0Spindle {
			// Mirrors the spindle enable output; no port claim
			// needed.
			bound++
			continue
		}
		p := rec.Ports[idx]
		if !p.Valid() {
			continue
		}
		if int(p) >= nPorts {
			s.log.Warn("%s: port %d out of range", fanLabels[idx], p)
			failures++
			continue
		}
		if !s.host.Ports.ClaimOutput(p, fanLabels[idx]) {
			s.log.Warn("%s: port %d unavailable", fanLabels[idx], p)
			failures++
			continue
		}
		ports[idx] = p
		bound++
	}

	s.mu.Lock()
	s.ports = ports
	s.bound = bound
	s.mu.Unlock()
	return failures
}

// PortOf returns the runtime port binding of a fan.
func (s *Subsystem) PortOf(fan int) hal.Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fan < 0 || fan >= s.n {
		return hal.PortNone
	}
	return s.ports[fan]
}

// SettingID identifies one persisted fan setting.
type SettingID int

const (
	SettingFan0Port SettingID = 450 + iota
	SettingFan1Port
	SettingFan2Port
	SettingFan3Port
	SettingSpindleLink
	SettingFan0OffDelay
)

// SettingDetail describes one setting for a configuration UI.
type SettingDetail struct {
	ID          SettingID
	Name        string
	Unit        string
	Min, Max    float64
	Description string
}

// SettingDetails lists the settings available in this build; per-fan
// port settings only exist up to the configured fan count.
func (s *Subsystem) SettingDetails() []SettingDetail {
	nPorts := float64(s.host.Ports.NumDigitalOut())
	details := make([]SettingDetail, 0, s.n+2)
	for fan := 0; fan < s.n; fan++ {
		details = append(details, SettingDetail{
			ID:          SettingFan0Port + SettingID(fan),
			Name:        fanLabels[fan] + " port",
			Min:         0,
			Max:         nPorts - 1,
			Description: "Aux port number to use for " + fanLabels[fan] + " control. Takes effect at the next hard reset.",
		})
	}
	details = append(details, SettingDetail{
		ID:          SettingSpindleLink,
		Name:        "Fan to spindle link",
		Unit:        "mask",
		Min:         0,
		Max:         float64(uint32(1<<uint(s.n)) - 1),
		Description: "Bitmask of fans to turn on when the spindle is enabled.",
	})
	details = append(details, SettingDetail{
		ID:          SettingFan0OffDelay,
		Name:        "Fan 0 off delay",
		Unit:        "minutes",
		Min:         0,
		Max:         MaxOffDelayMins,
		Description: "Delayed fan 0 turn off after spindle stop or program end. 0 disables the delay.",
	})
	return details
}

// SetSetting validates and applies a setting write. Each fan's port
// setter is independently indexed. Port changes take effect at the
// next boot; link and delay changes are live.
func (s *Subsystem) SetSetting(id SettingID, value float64) status.Code {
	switch {
	case id >= SettingFan0Port && id <= SettingFan3Port:
		fan := int(id - SettingFan0Port)
		if fan >= s.n {
			return status.SettingDisabled
		}
		if st := s.validatePort(value); st != status.OK {
			return st
		}
		s.mu.Lock()
		s.setting.Ports[fan] = hal.Port(value)
		s.mu.Unlock()
		return status.OK

	case id == SettingSpindleLink:
		if st := validateMask(value, s.n); st != status.OK {
			return st
		}
		s.mu.Lock()
		s.setting.SpindleLink = uint32(value)
		s.mu.Unlock()
		return status.OK

	case id == SettingFan0OffDelay:
		if value < 0 || value > MaxOffDelayMins || math.IsNaN(value) {
			return status.SettingValueOutOfRange
		}
		s.mu.Lock()
		s.setting.OffDelayMins = value
		s.mu.Unlock()
		return status.OK
	}
	return status.Unhandled
}

// Setting reads a setting's current value.
func (s *Subsystem) Setting(id SettingID) (float64, status.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case id >= SettingFan0Port && id <= SettingFan3Port:
		fan := int(id - SettingFan0Port)
		if fan >= s.n {
			return 0, status.SettingDisabled
		}
		return float64(s.setting.Ports[fan]), status.OK
	case id == SettingSpindleLink:
		return float64(s.setting.SpindleLink), status.OK
	case id == SettingFan0OffDelay:
		return s.setting.OffDelayMins, status.OK
	}
	return 0, status.Unhandled
}

// validatePort accepts an integer pool port or the disabled sentinel.
func (s *Subsystem) validatePort(v float64) status.Code {
	if math.IsNaN(v) || v != math.Trunc(v) {
		return status.BadNumberFormat
	}
	if v == float64(hal.PortNone) {
		return status.OK
	}
	if v < 0 || int(v) >= s.host.Ports.NumDigitalOut() {
		return status.SettingValueOutOfRange
	}
	return status.OK
}

func validateMask(v float64, n int) status.Code {
	if math.IsNaN(v) || v != math.Trunc(v) {
		return status.BadNumberFormat
	}
	if v < 0 || uint32(v) > uint32(1<<uint(n))-1 {
		return status.SettingValueOutOfRange
	}
	return status.OK
}
