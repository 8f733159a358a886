package room

import (
	"fmt"
	"strings"
	"time"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/game"
)

// Mode names a room ruleset
type Mode string

const (
	ModeClassic  Mode = "classic"
	ModeFast     Mode = "fast"
	ModeHardcore Mode = "hardcore"
	ModeTeams    Mode = "teams"
)

// Modes lists every supported mode
var Modes = []Mode{ModeClassic, ModeFast, ModeHardcore, ModeTeams}

// Team ids used in team mode
const (
	TeamNone = 0
	TeamRed  = 1
	TeamBlue = 2
)

// ModeConfig holds the settings of one mode
type ModeConfig struct {
	Mode            Mode
	Name            string
	MaxPlayers      int
	WorldSize       float64
	FoodCount       int
	VirusCount      int
	MatchDuration   time.Duration // 0 = endless
	SpawnProtection time.Duration
	SpeedMultiplier float64
	NoRespawn       bool
	TeamMode        bool
}

// DefaultConfig returns the config for the given mode
func DefaultConfig(mode Mode) (ModeConfig, error) {
	switch mode {
	case ModeClassic:
		return ModeConfig{
			Mode:            ModeClassic,
			Name:            "Classic",
			MaxPlayers:      30,
			WorldSize:       2000,
			FoodCount:       1000,
			VirusCount:      50,
			SpawnProtection: 3 * time.Second,
			SpeedMultiplier: 1,
		}, nil
	case ModeFast:
		return ModeConfig{
			Mode:            ModeFast,
			Name:            "Fast Mode",
			MaxPlayers:      25,
			WorldSize:       1500,
			FoodCount:       800,
			VirusCount:      40,
			MatchDuration:   300 * time.Second,
			SpawnProtection: 3 * time.Second,
			SpeedMultiplier: 1.5,
		}, nil
	case ModeHardcore:
		return ModeConfig{
			Mode:            ModeHardcore,
			Name:            "Hardcore",
			MaxPlayers:      20,
			WorldSize:       2500,
			FoodCount:       600,
			VirusCount:      80,
			MatchDuration:   600 * time.Second,
			SpawnProtection: 3 * time.Second,
			SpeedMultiplier: 1,
			NoRespawn:       true,
		}, nil
	case ModeTeams:
		return ModeConfig{
			Mode:            ModeTeams,
			Name:            "Team Mode",
			MaxPlayers:      40,
			WorldSize:       2500,
			FoodCount:       1200,
			VirusCount:      60,
			SpawnProtection: 3 * time.Second,
			SpeedMultiplier: 1,
			TeamMode:        true,
		}, nil
	}
	return ModeConfig{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// ParseMode normalises a client-supplied mode; empty means classic
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeClassic, nil
	}
	if _, err := DefaultConfig(m); err != nil {
		return "", err
	}
	return m, nil
}

// EngineConfig derives the simulation tuning for this mode
func (c ModeConfig) EngineConfig() game.Config {
	cfg := game.DefaultConfig(c.WorldSize)
	cfg.FoodCount = c.FoodCount
	cfg.VirusCount = c.VirusCount
	if c.SpeedMultiplier > 0 {
		cfg.SpeedMultiplier = c.SpeedMultiplier
	}
	return cfg
}

// assignTeam auto-balances a new player to the smaller team
func assignTeam(players map[string]*PlayerState) int {
	red, blue := 0, 0
	for _, p := range players {
		switch p.Team {
		case TeamRed:
			red++
		case TeamBlue:
			blue++
		}
	}
	if red <= blue {
		return TeamRed
	}
	return TeamBlue
}
