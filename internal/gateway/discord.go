package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 2000

type DiscordGateway struct {
	Session *discordgo.Session
	room    *chatRoom
}

func NewDiscordGateway(token string, host *Host) (*DiscordGateway, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	g := &DiscordGateway{Session: dg}
	g.room = newChatRoom(host, g.Send)
	return g, nil
}

func (g *DiscordGateway) Start(ctx context.Context) error {
	g.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		log.Printf("[%s] %s", m.Author.Username, m.Content)
		g.room.handle(ctx, m.ChannelID, m.Content)
	})

	if err := g.Session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if u := g.Session.State.User; u != nil {
		log.Printf("Authorized on account %s", u.Username)
	}

	<-ctx.Done()
	return nil
}

func (g *DiscordGateway) Send(chatID string, text string) error {
	_, err := g.Session.ChannelMessageSend(chatID, clip(text, discordMessageLimit))
	return err
}

func (g *DiscordGateway) Stop() error {
	return g.Session.Close()
}
