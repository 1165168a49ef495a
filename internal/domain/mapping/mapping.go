// Package mapping turns raw statistics payloads into typed records.
//
// Mapping never fails: absent or malformed values become 0, and the main
// story progress becomes "0 %".
package mapping

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/divtracker/internal/domain/model"
)

const (
	secondsPerHour   = 3600
	secondsPerMinute = 60

	// MainStoryPlaceholder is used when the progress value is missing.
	MainStoryPlaceholder = "0 %"
)

// Positions of the game 1 statscard entries.
const (
	g1Level = iota
	g1DZRank
	g1UGRank
	g1Playtime
	g1MainStory
	g1RogueKills
	g1ItemsExtracted
	g1SkillKills
	g1TotalKills
	_
	_
	g1GearScore
)

// Game1 maps a positional statscard payload.
func Game1(p model.StatsPayload, names []string) *model.Game1Stats {
	at := func(i int) uint64 {
		v, _ := p.At(i)
		return Uint(v)
	}
	story, _ := p.At(g1MainStory)

	return &model.Game1Stats{
		ID:             p.Profile.ID,
		Name:           p.Profile.Name,
		Level:          at(g1Level),
		DZRank:         at(g1DZRank),
		UGRank:         at(g1UGRank),
		Playtime:       at(g1Playtime) / secondsPerHour,
		MainStory:      Percent(story),
		RogueKills:     at(g1RogueKills),
		ItemsExtracted: at(g1ItemsExtracted),
		SkillKills:     at(g1SkillKills),
		TotalKills:     at(g1TotalKills),
		GearScore:      at(g1GearScore),
		AllNames:       copyNames(names),
	}
}

// Game2 maps a keyed tracker payload.
func Game2(p model.StatsPayload, names []string) *model.Game2Stats {
	key := func(k string) uint64 {
		v, _ := p.Value(k)
		return Uint(v)
	}

	return &model.Game2Stats{
		ID:                 p.Profile.ID,
		Name:               p.Profile.Name,
		TotalPlaytime:      key("timePlayed") / secondsPerHour,
		Level:              key("highestPlayerLevel"),
		PvPKills:           key("killsPvP"),
		NPCKills:           key("killsNpc"),
		Headshots:          key("headshots"),
		HeadshotKills:      key("killsHeadshot"),
		ShotgunKills:       key("killsWeaponShotgun"),
		SMGKills:           key("killsWeaponSubMachinegun"),
		PistolKills:        key("killsWeaponPistol"),
		RifleKills:         key("killsWeaponRifle"),
		PlayerKills:        key("playersKilled"),
		XPTotal:            key("xPTotal"),
		PvEXP:              key("xPPve"),
		PvPXP:              key("xPPvp"),
		ClanXP:             key("xPClan"),
		SharpshooterKills:  key("killsSpecializationSharpshooter"),
		SurvivalistKills:   key("killsSpecializationSurvivalist"),
		DemolitionistKills: key("killsSpecializationDemolitionist"),
		ECredit:            key("eCreditBalance"),
		CommendationCount:  key("commendationCount"),
		CommendationScore:  key("commendationScore"),
		GearScore:          key("latestGearScore"),
		DZRank:             key("rankDZ"),
		DZPlaytime:         key("timePlayedDarkZone") / secondsPerHour,
		RoguesKilled:       key("roguesKilled"),
		RoguePlaytime:      key("timePlayedRogue") / secondsPerHour,
		LongestRogue:       key("timePlayedRogueLongest") / secondsPerMinute,
		ConflictRank:       key("latestConflictRank"),
		ConflictPlaytime:   key("timePlayedConflict") / secondsPerHour,
		AllNames:           copyNames(names),
	}
}

// Uint parses an unsigned integer. Non-negative decimals are floored;
// anything else is 0.
func Uint(s string) uint64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(math.Floor(f))
}

// Percent renders a fraction x as "round(x*100) %". Values that already
// carry a percent sign are kept.
func Percent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return MainStoryPlaceholder
	}
	if strings.Contains(s, "%") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return MainStoryPlaceholder
	}
	return fmt.Sprintf("%d %%", int64(math.Round(f*100)))
}

func copyNames(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}
