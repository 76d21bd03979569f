package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rahul/stepwright/internal/agent"
	"github.com/rahul/stepwright/internal/planning"
)

// maxMessageLength is Telegram's limit for one text message.
const maxMessageLength = 4096

// Planner is implemented by brains that can show a plan without running it.
type Planner interface {
	Plan(ctx context.Context, chatID, input string) *planning.Plan
}

type TelegramGateway struct {
	Bot   *tgbotapi.BotAPI
	Brain agent.Brain
	// AllowedChats restricts who may talk to the bot; empty allows everyone.
	AllowedChats map[int64]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegramGateway(token string, brain agent.Brain) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	ctx, cancel := context.WithCancel(context.Background())
	return &TelegramGateway{
		Bot:    bot,
		Brain:  brain,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		if len(tg.AllowedChats) > 0 && !tg.AllowedChats[update.Message.Chat.ID] {
			log.Printf("Ignoring message from unauthorized chat %d", update.Message.Chat.ID)
			continue
		}

		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)

		tg.wg.Add(1)
		go func(msg *tgbotapi.Message) {
			defer tg.wg.Done()
			tg.handle(msg)
		}(update.Message)
	}
	return nil
}

func (tg *TelegramGateway) handle(msg *tgbotapi.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	response := tg.respond(tg.ctx, chatID, msg.Text)
	if err := tg.Send(chatID, response); err != nil {
		log.Printf("Error replying to %s: %v", chatID, err)
	}
}

// respond answers one message. "/plan <request>" shows the interpreted plan
// without executing it.
func (tg *TelegramGateway) respond(ctx context.Context, chatID, text string) string {
	if rest, ok := strings.CutPrefix(text, "/plan"); ok && (rest == "" || rest[0] == ' ') {
		planner, can := tg.Brain.(Planner)
		if !can {
			return "Planning preview is not available."
		}
		request := strings.TrimSpace(rest)
		if request == "" {
			return "Usage: /plan <request>"
		}
		return planner.Plan(ctx, chatID, request).Summary()
	}

	response, err := tg.Brain.Think(ctx, chatID, text)
	if err != nil {
		log.Printf("Error thinking: %v", err)
		return "I'm having trouble thinking right now..."
	}
	if strings.TrimSpace(response) == "" {
		return "Done, nothing to report."
	}
	return response
}

// Send delivers text as plain messages, split to fit Telegram's limit.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	for _, chunk := range splitMessage(text, maxMessageLength) {
		if _, err := tg.Bot.Send(tgbotapi.NewMessage(id, chunk)); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops polling, cancels in-flight requests and waits for them.
func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	tg.cancel()
	tg.wg.Wait()
	return nil
}
