package model

import (
	"fmt"
	"strings"
)

// Record is a typed statistics record ready for display.
type Record interface {
	fmt.Stringer
	ProfileID() string
}

// Game1Stats is the fixed record shape for game 1.
type Game1Stats struct {
	ID             string   `json:"-" yaml:"-"`
	Name           string   `json:"name" yaml:"name"`
	Level          uint64   `json:"level" yaml:"level"`
	DZRank         uint64   `json:"dz_rank" yaml:"dz_rank"`
	UGRank         uint64   `json:"ug_rank" yaml:"ug_rank"`
	Playtime       uint64   `json:"playtime" yaml:"playtime"`
	MainStory      string   `json:"main_story" yaml:"main_story"`
	TotalKills     uint64   `json:"total_kills" yaml:"total_kills"`
	RogueKills     uint64   `json:"rogue_kills" yaml:"rogue_kills"`
	ItemsExtracted uint64   `json:"items_extracted" yaml:"items_extracted"`
	SkillKills     uint64   `json:"skill_kills" yaml:"skill_kills"`
	GearScore      uint64   `json:"gear_score" yaml:"gear_score"`
	AllNames       []string `json:"all_names" yaml:"all_names"`
}

// ProfileID implements Record.
func (s *Game1Stats) ProfileID() string { return s.ID }

func (s *Game1Stats) String() string {
	var b lines
	b.add("Player", s.Name)
	b.add("Level", s.Level)
	b.add("Dark Zone rank", s.DZRank)
	b.add("Underground rank", s.UGRank)
	b.add("Playtime (h)", s.Playtime)
	b.add("Main story", s.MainStory)
	b.add("NPC kills", s.TotalKills)
	b.add("Rogue kills", s.RogueKills)
	b.add("Skill kills", s.SkillKills)
	b.add("Items extracted", s.ItemsExtracted)
	b.add("Gear score", s.GearScore)
	b.add("All names", strings.Join(s.AllNames, ", "))
	return b.String()
}

// Game2Stats is the fixed record shape for game 2.
type Game2Stats struct {
	ID                 string   `json:"-" yaml:"-"`
	Name               string   `json:"name" yaml:"name"`
	TotalPlaytime      uint64   `json:"total_playtime" yaml:"total_playtime"`
	Level              uint64   `json:"level" yaml:"level"`
	PvPKills           uint64   `json:"pvp_kills" yaml:"pvp_kills"`
	NPCKills           uint64   `json:"npc_kills" yaml:"npc_kills"`
	Headshots          uint64   `json:"headshots" yaml:"headshots"`
	HeadshotKills      uint64   `json:"headshot_kills" yaml:"headshot_kills"`
	ShotgunKills       uint64   `json:"shotgun_kills" yaml:"shotgun_kills"`
	SMGKills           uint64   `json:"smg_kills" yaml:"smg_kills"`
	PistolKills        uint64   `json:"pistol_kills" yaml:"pistol_kills"`
	RifleKills         uint64   `json:"rifle_kills" yaml:"rifle_kills"`
	PlayerKills        uint64   `json:"player_kills" yaml:"player_kills"`
	XPTotal            uint64   `json:"xp_total" yaml:"xp_total"`
	PvEXP              uint64   `json:"pve_xp" yaml:"pve_xp"`
	PvPXP              uint64   `json:"pvp_xp" yaml:"pvp_xp"`
	ClanXP             uint64   `json:"clan_xp" yaml:"clan_xp"`
	SharpshooterKills  uint64   `json:"sharpshooter_kills" yaml:"sharpshooter_kills"`
	SurvivalistKills   uint64   `json:"survivalist_kills" yaml:"survivalist_kills"`
	DemolitionistKills uint64   `json:"demolitionist_kills" yaml:"demolitionist_kills"`
	ECredit            uint64   `json:"e_credit" yaml:"e_credit"`
	CommendationCount  uint64   `json:"commendation_count" yaml:"commendation_count"`
	CommendationScore  uint64   `json:"commendation_score" yaml:"commendation_score"`
	GearScore          uint64   `json:"gear_score" yaml:"gear_score"`
	DZRank             uint64   `json:"dz_rank" yaml:"dz_rank"`
	DZPlaytime         uint64   `json:"dz_playtime" yaml:"dz_playtime"`
	RoguesKilled       uint64   `json:"rogues_killed" yaml:"rogues_killed"`
	RoguePlaytime      uint64   `json:"rogue_playtime" yaml:"rogue_playtime"`
	LongestRogue       uint64   `json:"longest_rogue" yaml:"longest_rogue"`
	ConflictRank       uint64   `json:"conflict_rank" yaml:"conflict_rank"`
	ConflictPlaytime   uint64   `json:"conflict_playtime" yaml:"conflict_playtime"`
	AllNames           []string `json:"all_names" yaml:"all_names"`
}

// ProfileID implements Record.
func (s *Game2Stats) ProfileID() string { return s.ID }

func (s *Game2Stats) String() string {
	var b lines
	b.add("Player", s.Name)
	b.add("Playtime (h)", s.TotalPlaytime)
	b.add("Level", s.Level)
	b.add("PvP kills", s.PvPKills)
	b.add("NPC kills", s.NPCKills)
	b.add("Headshots", s.Headshots)
	b.add("Headshot kills", s.HeadshotKills)
	b.add("Shotgun kills", s.ShotgunKills)
	b.add("SMG kills", s.SMGKills)
	b.add("Pistol kills", s.PistolKills)
	b.add("Rifle kills", s.RifleKills)
	b.add("Player kills", s.PlayerKills)
	b.add("Total XP", s.XPTotal)
	b.add("PvE XP", s.PvEXP)
	b.add("PvP XP", s.PvPXP)
	b.add("Clan XP", s.ClanXP)
	b.add("Sharpshooter kills", s.SharpshooterKills)
	b.add("Survivalist kills", s.SurvivalistKills)
	b.add("Demolitionist kills", s.DemolitionistKills)
	b.add("E-credits", s.ECredit)
	b.add("Commendations", s.CommendationCount)
	b.add("Commendation score", s.CommendationScore)
	b.add("Gear score", s.GearScore)
	b.add("Dark Zone rank", s.DZRank)
	b.add("Dark Zone playtime (h)", s.DZPlaytime)
	b.add("Rogues killed", s.RoguesKilled)
	b.add("Rogue playtime (h)", s.RoguePlaytime)
	b.add("Longest rogue (min)", s.LongestRogue)
	b.add("Conflict rank", s.ConflictRank)
	b.add("Conflict playtime (h)", s.ConflictPlaytime)
	b.add("All names", strings.Join(s.AllNames, ", "))
	return b.String()
}

type lines struct {
	strings.Builder
}

func (l *lines) add(label string, v any) {
	fmt.Fprintf(&l.Builder, "%s: %v\n", label, v)
}
