package discord

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/bwmarrin/discordgo"

	"levelbot/internal/cache"
	"levelbot/internal/config"
	"levelbot/internal/database"
	"levelbot/internal/progression"
	"levelbot/internal/voice"
	"levelbot/pkg/utils"
)

// Bot represents the Discord bot
type Bot struct {
	session    *discordgo.Session
	repository *database.Repository
	engine     *progression.Engine
	tracker    *voice.Tracker
	lbCache    *cache.Leaderboard
	cfg        *config.Config
	commands   map[string]*command
}

// command binds a slash-command definition to its handler.
type command struct {
	definition *discordgo.ApplicationCommand
	handler    func(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// New creates a new Discord bot
func New(cfg *config.Config, repository *database.Repository, engine *progression.Engine, lbCache *cache.Leaderboard) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates

	bot := &Bot{
		session:    session,
		repository: repository,
		engine:     engine,
		lbCache:    lbCache,
		cfg:        cfg,
	}
	bot.tracker = voice.NewTracker(repository, engine, bot)
	bot.commands = bot.buildCommands()

	// Add event handlers
	session.AddHandler(bot.ready)
	session.AddHandler(bot.interactionCreate)
	session.AddHandler(bot.messageCreate)
	session.AddHandler(bot.voiceStateUpdate)

	return bot, nil
}

// Start opens the gateway connection and starts the voice accrual tick.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	go b.tracker.Run(ctx)

	fmt.Println("✅ Bot is running...")
	return nil
}

// Stop stops the bot
func (b *Bot) Stop() error {
	return b.session.Close()
}

// ready registers the guild's slash commands and sets the presence.
func (b *Bot) ready(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("Logged in as %s", r.User.Username)

	if err := s.UpdateWatchStatus(0, "https://elythera.com/"); err != nil {
		log.Printf("Error setting presence: %v", err)
	}

	definitions := make([]*discordgo.ApplicationCommand, 0, len(b.commands))
	for _, cmd := range b.commands {
		definitions = append(definitions, cmd.definition)
	}

	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.cfg.GuildID, definitions); err != nil {
		log.Printf("Error registering commands: %v", err)
		return
	}
	log.Println("Commands registered successfully.")
}

// interactionCreate dispatches slash commands through the static command
// table.
func (b *Bot) interactionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	cmd, ok := b.commands[i.ApplicationCommandData().Name]
	if !ok {
		return
	}
	cmd.handler(s, i)
}

// messageCreate awards a random 1-10 XP for every qualifying guild message.
func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot || m.GuildID == "" {
		return
	}

	delta := rand.Intn(10) + 1
	rec, leveledUp, err := b.engine.ApplyXP(m.GuildID, m.Author.ID, delta)
	if err != nil {
		log.Printf("Error applying message XP for %s: %v", m.Author.ID, err)
		return
	}
	if leveledUp {
		b.NotifyLevelUp(m.GuildID, m.Author.ID, rec.Level)
	}
}

// voiceStateUpdate opens a session when a user enters voice and closes it
// when they leave. Switching between channels keeps the running session.
func (b *Bot) voiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	connectedBefore := vs.BeforeUpdate != nil && vs.BeforeUpdate.ChannelID != ""

	switch {
	case vs.ChannelID != "" && !connectedBefore:
		if err := b.tracker.HandleJoin(vs.UserID, vs.GuildID); err != nil {
			log.Printf("Error opening voice session for %s: %v", vs.UserID, err)
		}
	case vs.ChannelID == "":
		if err := b.tracker.HandleLeave(vs.UserID, vs.GuildID); err != nil {
			log.Printf("Error closing voice session for %s: %v", vs.UserID, err)
		}
	}
}

// NotifyLevelUp announces a level-up in the configured channel. Delivery
// failures are logged, never retried.
func (b *Bot) NotifyLevelUp(guildID, userID string, level int) {
	if b.cfg.LevelUpChannelID == "" {
		return
	}

	msg := utils.FormatLevelUp(userID, level)
	if _, err := b.session.ChannelMessageSend(b.cfg.LevelUpChannelID, msg); err != nil {
		log.Printf("Error sending level-up message for %s: %v", userID, err)
	}
}

// isAdmin reports whether the member's roles intersect the configured
// admin roles, or the member is a configured admin user.
func isAdmin(member *discordgo.Member, adminRoles, adminUsers []string) bool {
	if member == nil {
		return false
	}

	for _, roleID := range member.Roles {
		for _, adminRole := range adminRoles {
			if roleID == adminRole {
				return true
			}
		}
	}

	if member.User == nil {
		return false
	}
	for _, adminUser := range adminUsers {
		if member.User.ID == adminUser {
			return true
		}
	}
	return false
}
