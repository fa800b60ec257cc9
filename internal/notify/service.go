package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/multierr"

	"github.com/clipgate/clipgate-backend/pkg/config"
	"github.com/clipgate/clipgate-backend/pkg/db/models"
	"github.com/clipgate/clipgate-backend/pkg/logger"
	"github.com/clipgate/clipgate-backend/pkg/metrics"
	"github.com/clipgate/clipgate-backend/pkg/profanity"
)

const (
	channelCounterName = "tg_channel_posts"
	// Counter TTL outlives the month it names so a late read still sees it.
	channelCounterTTL = 35 * 24 * time.Hour

	salesChannelLabel  = "sales_group"
	publicChannelLabel = "channel"
)

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type monthlyCounter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	MonthlyCounterKey(name string, now time.Time) string
}

// Service fans a confirmed sale out to Telegram. Every path is best effort;
// the caller only logs the returned error.
type Service struct {
	bot      botSender
	cfg      config.TelegramConfig
	counter  monthlyCounter
	cleaner  *profanity.Cleaner
	logg     *logger.Logger
	payments *metrics.PaymentMetrics
	isTest   bool
	now      func() time.Time
}

// ServiceParams configures the fan-out service. Bot may be nil when
// notifications are disabled.
type ServiceParams struct {
	Bot      botSender
	Config   config.TelegramConfig
	Counter  monthlyCounter
	Cleaner  *profanity.Cleaner
	Logger   *logger.Logger
	Payments *metrics.PaymentMetrics
	IsTest   bool
}

// NewService builds the notification fan-out.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config.Enabled && params.Bot == nil {
		return nil, fmt.Errorf("telegram enabled but no bot provided")
	}
	return &Service{
		bot:      params.Bot,
		cfg:      params.Config,
		counter:  params.Counter,
		cleaner:  params.Cleaner,
		logg:     params.Logger,
		payments: params.Payments,
		isTest:   params.IsTest,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewBot dials the Telegram API with the configured token.
func NewBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token required")
	}
	return tgbotapi.NewBotAPI(cfg.BotToken)
}

// NotifySale sends the sales-group alert and, budget permitting, a public
// channel post. Failures are aggregated and returned for logging only.
func (s *Service) NotifySale(ctx context.Context, purchase *models.Purchase) error {
	if purchase == nil {
		return fmt.Errorf("purchase required")
	}
	if !s.cfg.Enabled || s.bot == nil {
		return nil
	}

	title := deref(purchase.VideoTitle)
	if title == "" {
		title = purchase.ItemID()
	}
	// Titles are user supplied and leave the system here.
	title = s.cleaner.Clean(title)

	var errs error
	if s.cfg.SalesGroupID != 0 {
		errs = multierr.Append(errs, s.send(s.cfg.SalesGroupID, saleMessage(purchase, title, s.isTest, s.now()), salesChannelLabel))
	}
	if s.cfg.ChannelID != 0 && s.channelBudgetAllows(ctx) {
		errs = multierr.Append(errs, s.send(s.cfg.ChannelID, channelMessage(purchase, title), publicChannelLabel))
	}
	return errs
}

func (s *Service) send(chatID int64, text, channel string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		s.payments.IncNotificationError(channel)
		return fmt.Errorf("sending telegram %s message: %w", channel, err)
	}
	s.payments.IncNotificationSent(channel)
	return nil
}

// channelBudgetAllows enforces the monthly public-post ceiling. Counter
// errors fail open: a broken counter must not silence the channel.
func (s *Service) channelBudgetAllows(ctx context.Context) bool {
	if s.counter == nil || s.cfg.MonthlyLimit <= 0 {
		return true
	}
	key := s.counter.MonthlyCounterKey(channelCounterName, s.now())
	count, err := s.counter.IncrWithTTL(ctx, key, channelCounterTTL)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"error": err.Error()}), "channel post counter unavailable, posting anyway")
		}
		return true
	}
	if count > s.cfg.MonthlyLimit {
		if s.logg != nil {
			s.logg.Info(ctx, "channel post budget exhausted for this month")
		}
		return false
	}
	return true
}
