// Package bot implements the ingestion bot: it receives channel post
// webhooks, relays media to storage and forwards post metadata to the API
// server. It also hands out one-time login links on request.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"channelboard/apiclient"
	"channelboard/uploader"
)

var (
	ErrCreateBot      = errors.New("cannot create bot api client")
	ErrGetMe          = errors.New("cannot retrieve bot user")
	ErrUpdatesChannel = errors.New("cannot get updates channel")
	ErrHandlerInit    = errors.New("cannot initialize handler")
)

const webhookPath = "/webhook"

type Bot struct {
	api      *telego.Bot
	client   *apiclient.Client
	uploader uploader.Uploader
	channel  string
}

// New builds the bot for the given channel ("@name"). Posts from other chats
// are ignored.
func New(token string, client *apiclient.Client, up uploader.Uploader, channel string) (*Bot, error) {
	api, err := telego.NewBot(token)
	if err != nil {
		slog.Error("bot: Cannot create bot api client", "error", err)
		return nil, ErrCreateBot
	}

	return &Bot{
		api:      api,
		client:   client,
		uploader: up,
		channel:  channel,
	}, nil
}

// Run registers the webhook with Telegram and serves updates until the
// webhook server stops.
func (b *Bot) Run(webhookBaseURL, listenAddr string) error {
	botUser, err := b.api.GetMe()
	if err != nil {
		slog.Error("bot: Cannot retrieve bot user", "error", err)
		return ErrGetMe
	}

	slog.Info("bot: Running as", "id", botUser.ID, "username", botUser.Username)

	err = b.api.SetWebhook(&telego.SetWebhookParams{
		URL: strings.TrimRight(webhookBaseURL, "/") + webhookPath,
	})
	if err != nil {
		slog.Error("bot: Cannot set webhook", "error", err)
		return ErrUpdatesChannel
	}

	updates, err := b.api.UpdatesViaWebhook(webhookPath)
	if err != nil {
		slog.Error("bot: Cannot get updates channel", "error", err)
		return ErrUpdatesChannel
	}

	bh, err := th.NewBotHandler(b.api, updates)
	if err != nil {
		slog.Error("bot: Cannot initialize bot handler", "error", err)
		return ErrHandlerInit
	}
	defer bh.Stop()

	bh.HandleMessage(b.startHandler, th.CommandEqual("start"))
	bh.HandleChannelPost(b.channelPostHandler)

	go bh.Start()

	return b.api.StartWebhook(listenAddr)
}

// Stop shuts the webhook server down.
func (b *Bot) Stop() error {
	return b.api.StopWebhook()
}

// startHandler implements "/start login": the user gets a one-time link to
// sign in on the site from a regular browser.
func (b *Bot) startHandler(bot *telego.Bot, message telego.Message) {
	args := strings.Fields(message.Text)
	if len(args) < 2 || !strings.EqualFold(args[1], "login") {
		return
	}
	if message.From == nil {
		return
	}

	slog.Info("bot: /start login", "user_id", message.From.ID)

	loginURL, err := b.client.CreateLoginToken(context.Background(), apiclient.LoginUser{
		TelegramID: message.From.ID,
		Username:   strings.TrimPrefix(message.From.Username, "@"),
		FirstName:  message.From.FirstName,
		LastName:   message.From.LastName,
	})
	if err != nil {
		slog.Error("bot: Cannot create login token", "error", err, "user_id", message.From.ID)
		b.reply(message.Chat.ID, "The login service is temporarily unavailable. Please try again later.")
		return
	}

	b.reply(message.Chat.ID,
		"To sign in on the site from a regular browser (Chrome, Safari and so on), open the link below in the browser:\n\n"+
			"📲 Long-press the link → \"Open in browser\"\n"+
			"or copy it into the browser's address bar.\n\n"+
			loginURL)
}

func (b *Bot) reply(chatID int64, text string) {
	_, err := b.api.SendMessage(tu.Message(tu.ID(chatID), text))
	if err != nil {
		slog.Error("bot: Cannot send message", "error", err, "chat_id", chatID)
	}
}
