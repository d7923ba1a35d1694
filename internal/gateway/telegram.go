package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMessageLimit = 4096

type TelegramGateway struct {
	Bot  *tgbotapi.BotAPI
	room *chatRoom
}

func NewTelegramGateway(token string, host *Host) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	tg := &TelegramGateway{Bot: bot}
	tg.room = newChatRoom(host, tg.Send)
	return tg, nil
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			from := ""
			if update.Message.From != nil {
				from = update.Message.From.UserName
			}
			log.Printf("[%s] %s", from, update.Message.Text)

			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			tg.room.handle(ctx, chatID, update.Message.Text)
		}
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	// Plain text: lesson content is not escaped for Markdown.
	msg := tgbotapi.NewMessage(id, clip(text, telegramMessageLimit))
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
