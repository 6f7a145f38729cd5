// Gamenight Discord Bot
//
// Links Discord members to their Steam accounts (stored in a Google
// Sheet, one row per member), then finds games a group owns in common
// and can actually play together.
//
// Surface:
// - /ping: liveness check
// - /sheet-members: diagnostic dump of the member sheet
// - /link-steam: modal that validates and stores a 17-digit SteamID
// - /letsplay: intersects up to five members' libraries, keeps the
//   multiplayer titles, and attaches a random-pick message with three
//   re-rolls
// - Member-join events pre-provision sheet rows with an unset SteamID

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	customIDPick   = "gamenight:pick"
	customIDReroll = "gamenight:reroll"
	modalLinkSteam = "gamenight:link-steam"

	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71
)

var steamIDPattern = regexp.MustCompile(`^7656119\d{10}$`)

type Bot struct {
	cfg     *Config
	store   *SheetStore
	steam   *SteamClient
	session *discordgo.Session
	pickers *PickerRegistry
}

// RunBot connects to Discord, starts the diagnostics server, and
// blocks until the context is cancelled or a shutdown signal arrives.
func RunBot(ctx context.Context, cfg *Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logf(cfg, "START: gamenight v%s", releaseVersion)

	session, err := discordgo.New("Bot " + cfg.discordToken)
	if err != nil {
		return err
	}

	bot := &Bot{
		cfg:     cfg,
		store:   newSheetStore(cfg),
		steam:   newSteamClient(cfg),
		session: session,
	}
	bot.pickers = newPickerRegistry(cfg.pickerTimeout, bot.expirePicker)

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildMemberAdd)
	session.AddHandler(bot.onInteractionCreate)

	if err := session.Open(); err != nil {
		return err
	}
	defer session.Close()

	srv := startDiagnostics(cfg, bot)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}

func applicationCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Pings the bot to check if it's online.",
		},
		{
			Name:        "sheet-members",
			Description: "Shows the data from the member sheet for debugging.",
		},
		{
			Name:        "link-steam",
			Description: "Link your Steam account to this Discord server so you can use the other functions.",
		},
		{
			Name:        "letsplay",
			Description: "Finds common games among selected friends.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player2",
					Description: "First friend to include",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player3",
					Description: "Second friend to include (optional)",
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player4",
					Description: "Third friend to include (optional)",
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player5",
					Description: "Fourth friend to include (optional)",
				},
			},
		},
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logf(b.cfg, "BOT: Logged in as %s (ID: %s)", r.User.Username, r.User.ID)
	logf(b.cfg, "BOT: Connected to %d guild(s)", len(r.Guilds))

	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", applicationCommands())
	if err != nil {
		logf(b.cfg, "BOT: Syncing slash commands failed: %v", err)
		return
	}
	logf(b.cfg, "BOT: Global slash commands synced")
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}

	added, err := b.store.Register(m.User.Username, m.User.ID)
	switch {
	case err != nil:
		logf(b.cfg, "BOT: Registering %s (%s) failed: %v", m.User.Username, m.User.ID, err)
	case added:
		logf(b.cfg, "BOT: Registered %s (%s)", m.User.Username, m.User.ID)
	default:
		logf(b.cfg, "BOT: %s (%s) is already registered", m.User.Username, m.User.ID)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "ping":
			b.respond(s, i, "Pong!", false)
		case "sheet-members":
			b.handleSheetMembers(s, i)
		case "link-steam":
			b.handleLinkSteam(s, i)
		case "letsplay":
			b.handleLetsPlay(s, i)
		}
	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == modalLinkSteam {
			b.handleLinkSubmit(s, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// interactionUser returns the invoking user for both guild and DM
// interactions.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, text string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: text}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		logf(b.cfg, "BOT: Responding to interaction failed: %v", err)
	}
}

func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		logf(b.cfg, "BOT: Deferring interaction failed: %v", err)
		return false
	}
	return true
}

func (b *Bot) handleSheetMembers(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.deferReply(s, i) {
		return
	}

	records := b.store.ListAll()
	if len(records) == 0 {
		b.followup(s, i, "The member sheet is empty or could not be accessed.")
		return
	}

	var reply strings.Builder
	reply.WriteString("Current members in the sheet:\n")
	for _, r := range records {
		steamID := r.SteamID
		if steamID == "" {
			steamID = "N/A"
		}
		fmt.Fprintf(&reply, "- **%s** (Discord ID: `%s`, Steam ID: `%s`)\n", r.Username, r.DiscordID, steamID)
	}

	b.followup(s, i, truncateMessage(reply.String(), 2000))
}

func (b *Bot) followup(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: text})
	if err != nil {
		logf(b.cfg, "BOT: Sending followup failed: %v", err)
	}
}

func (b *Bot) handleLinkSteam(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}

	if current, ok := b.store.Resolve(user.ID); ok {
		b.respond(s, i, fmt.Sprintf(
			"You are already linked with SteamID `%s`. If you want to change it, please contact %s",
			current, b.cfg.adminMention()), true)
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalLinkSteam,
			Title:    "Link Your Steam Account",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "steam_id",
							Label:       "Your 17-Digit SteamID",
							Placeholder: "e.g., 76561198082726169",
							Style:       discordgo.TextInputShort,
							Required:    true,
							MinLength:   17,
							MaxLength:   17,
						},
					},
				},
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID: "tutorial_link",
							Label:    "How to find your SteamID (visit this link)",
							Value:    "https://help.bethesda.net/#en/answer/49679",
							Style:    discordgo.TextInputShort,
							Required: false,
						},
					},
				},
			},
		},
	})
	if err != nil {
		logf(b.cfg, "BOT: Opening link modal failed: %v", err)
	}
}

func (b *Bot) handleLinkSubmit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}

	raw := modalInputValue(i.ModalSubmitData(), "steam_id")
	b.respond(s, i, linkSteamAccount(b.store, user.ID, raw, b.cfg.adminMention()), true)
}

func modalInputValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			if input, ok := component.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

// steamLinker is the slice of SheetStore the linking form needs.
type steamLinker interface {
	Link(discordID, steamID string) error
}

// linkSteamAccount validates a submitted SteamID and writes it through
// the store, returning the user-facing reply. Invalid input is
// rejected before any store call.
func linkSteamAccount(store steamLinker, discordID, raw, adminMention string) string {
	entered := strings.TrimSpace(raw)

	if !steamIDPattern.MatchString(entered) {
		return "That doesn't look like a valid 17-digit SteamID. " +
			"Please ensure it starts with '7656119' and is exactly 17 digits long."
	}

	if err := store.Link(discordID, entered); err != nil {
		return fmt.Sprintf("Failed to link your SteamID: %v. Please try again or contact %s for assistance.",
			err, adminMention)
	}

	return fmt.Sprintf("Your SteamID (`%s`) has been successfully linked to this Discord server.", entered)
}

func (b *Bot) handleLetsPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	invoker := interactionUser(i)
	if invoker == nil {
		return
	}

	if !b.deferReply(s, i) {
		return
	}

	players := []Participant{{DiscordID: invoker.ID, Name: invoker.Username}}
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Type != discordgo.ApplicationCommandOptionUser {
			continue
		}
		user := opt.UserValue(s)
		if user == nil {
			continue
		}
		players = append(players, Participant{DiscordID: user.ID, Name: user.Username})
	}

	rep := &discordReporter{
		cfg:         b.cfg,
		session:     s,
		interaction: i.Interaction,
		pickers:     b.pickers,
	}

	findCommonGames(context.Background(), b.cfg, rep, b.store, b.steam, players)
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if data.CustomID != customIDPick && data.CustomID != customIDReroll {
		return
	}

	session, ok := b.pickers.Get(i.Message.ID)
	if !ok {
		b.respond(s, i, "This game picker has expired.", true)
		return
	}

	switch data.CustomID {
	case customIDPick:
		res := session.Pick()
		if !res.OK {
			b.respond(s, i, res.Notice, true)
			return
		}
		embed := pickEmbed(fmt.Sprintf("🎲 Let's play: %s!", res.Game.Name), res.Game,
			fmt.Sprintf("%d re-rolls left.", res.RerollsLeft), colorBlue)
		b.updateMessage(s, i, embed, pickerComponents(true, false))

	case customIDReroll:
		res := session.Reroll()
		if !res.OK {
			b.respond(s, i, res.Notice, true)
			if res.DisableReroll {
				b.disableControls(i.ChannelID, i.Message.ID)
			}
			return
		}
		footer := fmt.Sprintf("%d re-rolls left.", res.RerollsLeft)
		if res.RerollsLeft == 0 {
			footer = "No more re-rolls left."
		}
		embed := pickEmbed(fmt.Sprintf("🎲 Re-rolled: %s!", res.Game.Name), res.Game, footer, colorGreen)
		b.updateMessage(s, i, embed, pickerComponents(true, res.DisableReroll))
	}
}

func (b *Bot) updateMessage(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
	if err != nil {
		logf(b.cfg, "BOT: Updating picker message failed: %v", err)
	}
}

// disableControls switches off every button on a picker message.
func (b *Bot) disableControls(channelID, messageID string) {
	components := pickerComponents(true, true)
	_, err := b.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Components: &components,
	})
	if err != nil {
		logf(b.cfg, "PICK: Disabling controls on %s failed: %v", messageID, err)
	}
}

// expirePicker is the registry's reaper callback.
func (b *Bot) expirePicker(channelID, messageID string) {
	logf(b.cfg, "PICK: Session %s timed out", messageID)
	b.disableControls(channelID, messageID)
}

func pickerComponents(pickDisabled, rerollDisabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Pick a random game for us!",
					Style:    discordgo.PrimaryButton,
					CustomID: customIDPick,
					Disabled: pickDisabled,
				},
				discordgo.Button{
					Label:    "Re-roll game",
					Style:    discordgo.SecondaryButton,
					CustomID: customIDReroll,
					Disabled: rerollDisabled,
				},
			},
		},
	}
}

func pickEmbed(title string, game GamePick, footer string, color int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  title,
		Color:  color,
		Footer: &discordgo.MessageEmbedFooter{Text: footer},
	}
	if game.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: game.Image}
	} else {
		embed.Description = "No image available for this game."
	}
	return embed
}

// inviteURL returns the bot's OAuth invite link, or "" before the
// gateway session is ready.
func (b *Bot) inviteURL() string {
	user := b.session.State.User
	if user == nil {
		return ""
	}
	return "https://discord.com/oauth2/authorize?client_id=" + user.ID + "&scope=bot%20applications.commands"
}

// discordReporter delivers workflow output as interaction followups.
type discordReporter struct {
	cfg         *Config
	session     *discordgo.Session
	interaction *discordgo.Interaction
	pickers     *PickerRegistry

	progressID string
}

func (r *discordReporter) Notify(text string) {
	_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{Content: text})
	if err != nil {
		logf(r.cfg, "BOT: Sending followup failed: %v", err)
	}
}

func (r *discordReporter) Progress(text string) {
	if r.progressID == "" {
		m, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{Content: text})
		if err != nil {
			logf(r.cfg, "BOT: Sending progress message failed: %v", err)
			return
		}
		r.progressID = m.ID
		return
	}

	_, err := r.session.FollowupMessageEdit(r.interaction, r.progressID, &discordgo.WebhookEdit{Content: &text})
	if err != nil {
		logf(r.cfg, "BOT: Editing progress message failed: %v", err)
	}
}

func (r *discordReporter) Result(text string, games []GamePick) {
	if len(games) == 0 {
		r.Notify(text)
		return
	}

	m, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Content:    text,
		Components: pickerComponents(false, true),
	})
	if err != nil {
		logf(r.cfg, "BOT: Sending result message failed: %v", err)
		return
	}

	r.pickers.Add(m.ChannelID, m.ID, games)
	logf(r.cfg, "PICK: Session %s created with %d candidates", m.ID, len(games))
}
