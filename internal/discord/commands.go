package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"levelbot/internal/models"
	"levelbot/internal/progression"
	"levelbot/pkg/utils"
)

const (
	colorDefault = 0x0099FF
	colorBronze  = 0xCD7F32
	colorGold    = 0xFFD700
)

const (
	msgGenericFailure   = "Something went wrong running this command."
	msgPermissionDenied = "You do not have permission to use this command."
)

// buildCommands resolves the static command table once at construction.
func (b *Bot) buildCommands() map[string]*command {
	return map[string]*command{
		"level": {
			definition: &discordgo.ApplicationCommand{
				Name:        "level",
				Description: "View your level or another member's",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "member",
						Description: "The member whose level you want to see",
					},
				},
			},
			handler: b.handleLevel,
		},
		"leaderboard": {
			definition: &discordgo.ApplicationCommand{
				Name:        "leaderboard",
				Description: "Show the level rankings",
			},
			handler: b.handleLeaderboard,
		},
		"setlevel": {
			definition: &discordgo.ApplicationCommand{
				Name:        "setlevel",
				Description: "Set a user's level (admin only)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "member",
						Description: "The member whose level you want to set",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "level",
						Description: "The level to set",
						Required:    true,
					},
				},
			},
			handler: b.handleSetLevel,
		},
		"setxp": {
			definition: &discordgo.ApplicationCommand{
				Name:        "setxp",
				Description: "Set a user's XP (admin only)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionUser,
						Name:        "member",
						Description: "The member whose XP you want to set",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "xp",
						Description: "The XP to set",
						Required:    true,
					},
				},
			},
			handler: b.handleSetXP,
		},
		"newseason": {
			definition: &discordgo.ApplicationCommand{
				Name:        "newseason",
				Description: "Start a new season (admin only)",
			},
			handler: b.handleNewSeason,
		},
	}
}

// handleLevel shows the caller's (or another member's) current level.
func (b *Bot) handleLevel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	target := i.Member.User
	if options := i.ApplicationCommandData().Options; len(options) > 0 {
		target = options[0].UserValue(s)
	}

	rec, err := b.repository.GetCurrentRecord(i.GuildID, target.ID)
	if err != nil {
		log.Printf("Error getting record for %s: %v", target.ID, err)
		replyEphemeral(s, i, msgGenericFailure)
		return
	}
	if rec == nil {
		replyEphemeral(s, i, "This user has no level yet.")
		return
	}

	color := colorDefault
	if rec.Level >= 100 {
		color = colorBronze
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s's level", target.Username),
		Description: fmt.Sprintf("**Level:** %d\n**XP:** %d/%d\n**Progress:** %s",
			rec.Level, rec.XP, progression.LevelUpXP, utils.ProgressBar(rec.XP, progression.LevelUpXP)),
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: target.AvatarURL("")},
		Color:     color,
	}
	replyEmbed(s, i, embed, true)
}

// handleLeaderboard shows the current-season top 10 and the caller's rank.
func (b *Bot) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	season, err := b.repository.GetCurrentSeason(i.GuildID)
	if err != nil {
		log.Printf("Error getting current season: %v", err)
		replyEphemeral(s, i, msgGenericFailure)
		return
	}

	entries, err := b.lbCache.GetTop(ctx, i.GuildID, season)
	if err != nil {
		// Cache faults degrade to a direct database read.
		log.Printf("Error reading leaderboard cache: %v", err)
		entries = nil
	}
	if entries == nil {
		entries, err = b.repository.GetLeaderboard(i.GuildID)
		if err != nil {
			log.Printf("Error getting leaderboard: %v", err)
			replyEphemeral(s, i, msgGenericFailure)
			return
		}
		if err := b.lbCache.SetTop(ctx, i.GuildID, season, entries); err != nil {
			log.Printf("Error caching leaderboard: %v", err)
		}
	}

	rank, err := b.repository.GetRank(i.GuildID, i.Member.User.ID)
	if err != nil {
		log.Printf("Error getting rank for %s: %v", i.Member.User.ID, err)
	}

	footer := "You are unranked"
	if rank > 0 {
		footer = fmt.Sprintf("You are ranked #%d", rank)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Level Rankings",
		Description: b.formatLeaderboard(s, entries),
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		Color:       colorGold,
	}
	replyEmbed(s, i, embed, false)
}

// handleSetLevel sets a user's level, admins only.
func (b *Bot) handleSetLevel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i.Member, b.cfg.AdminRoles, b.cfg.AdminUsers) {
		replyEphemeral(s, i, msgPermissionDenied)
		return
	}

	data := i.ApplicationCommandData()
	target := data.Options[0].UserValue(s)
	level := int(data.Options[1].IntValue())

	if err := b.engine.SetLevel(i.GuildID, target.ID, level); err != nil {
		log.Printf("Error setting level for %s: %v", target.ID, err)
		replyEphemeral(s, i, msgGenericFailure)
		return
	}

	b.invalidateLeaderboard(i.GuildID)
	replyEphemeral(s, i, fmt.Sprintf("%s's level has been set to %d.", utils.FormatUserMention(target.ID), level))
}

// handleSetXP sets a user's XP within [0, 99], admins only.
func (b *Bot) handleSetXP(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i.Member, b.cfg.AdminRoles, b.cfg.AdminUsers) {
		replyEphemeral(s, i, msgPermissionDenied)
		return
	}

	data := i.ApplicationCommandData()
	target := data.Options[0].UserValue(s)
	xp := int(data.Options[1].IntValue())

	if err := b.engine.SetXP(i.GuildID, target.ID, xp); err != nil {
		if errors.Is(err, progression.ErrXPOutOfRange) {
			replyEphemeral(s, i, "XP must be between 0 and 99.")
			return
		}
		log.Printf("Error setting XP for %s: %v", target.ID, err)
		replyEphemeral(s, i, msgGenericFailure)
		return
	}

	b.invalidateLeaderboard(i.GuildID)
	replyEphemeral(s, i, fmt.Sprintf("%s's XP has been set to %d.", utils.FormatUserMention(target.ID), xp))
}

// handleNewSeason archives the current season and starts the next one,
// admins only.
func (b *Bot) handleNewSeason(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i.Member, b.cfg.AdminRoles, b.cfg.AdminUsers) {
		replyEphemeral(s, i, msgPermissionDenied)
		return
	}

	next, err := b.engine.StartNewSeason(i.GuildID)
	if err != nil {
		log.Printf("Error starting new season: %v", err)
		replyEphemeral(s, i, msgGenericFailure)
		return
	}

	if err := b.lbCache.Invalidate(context.Background(), i.GuildID, next-1); err != nil {
		log.Printf("Error invalidating leaderboard cache: %v", err)
	}
	replyEphemeral(s, i, fmt.Sprintf("New season started! Welcome to season %d.", next))
}

// formatLeaderboard renders entries with medals, resolving usernames via
// the API. Unresolvable users keep their place with a placeholder name.
func (b *Bot) formatLeaderboard(s *discordgo.Session, entries []models.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "No one has earned XP yet."
	}

	lines := make([]string, 0, len(entries))
	for idx, entry := range entries {
		name := "Unknown user"
		if user, err := s.User(entry.UserID); err == nil {
			name = user.Username
		}
		lines = append(lines, utils.FormatLeaderboardEntry(idx+1, name, entry.Level, entry.XP))
	}
	return strings.Join(lines, "\n")
}

// invalidateLeaderboard drops the cached page for the guild's current
// season after an administrative write.
func (b *Bot) invalidateLeaderboard(guildID string) {
	season, err := b.repository.GetCurrentSeason(guildID)
	if err != nil {
		log.Printf("Error getting season for cache invalidation: %v", err)
		return
	}
	if err := b.lbCache.Invalidate(context.Background(), guildID, season); err != nil {
		log.Printf("Error invalidating leaderboard cache: %v", err)
	}
}

func replyEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

func replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}
