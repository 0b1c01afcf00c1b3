package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Source is what alerts are built from; *inventory.Ledger satisfies it.
type Source interface {
	ExpiringLots(ctx context.Context, days int) ([]inventory.Lot, error)
	LowStock(ctx context.Context) ([]inventory.StockLevel, error)
}

type ItemReader interface {
	Item(ctx context.Context, id int64) (*catalog.Item, error)
}

type Config struct {
	ChatIDs      []int64
	ExpiryWindow int // days
	Every        time.Duration
}

// Notifier pushes expiring-lot and low-stock alerts to Telegram chats on a
// ticker. An alert identical to the previous one is not sent again.
type Notifier struct {
	api   Sender
	src   Source
	items ItemReader
	cfg   Config
	log   *slog.Logger

	mu   sync.Mutex
	last string
}

func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func New(api Sender, src Source, items ItemReader, cfg Config, log *slog.Logger) *Notifier {
	if cfg.ExpiryWindow <= 0 {
		cfg.ExpiryWindow = 30
	}
	if cfg.Every <= 0 {
		cfg.Every = time.Hour
	}
	return &Notifier{api: api, src: src, items: items, cfg: cfg, log: log}
}

// Run checks once immediately and then on every tick until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	t := time.NewTicker(n.cfg.Every)
	defer t.Stop()
	for {
		if err := n.Check(ctx); err != nil {
			n.log.Error("stock alert check failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Check builds the current alert and sends it when it differs from the last
// one sent.
func (n *Notifier) Check(ctx context.Context) error {
	expiring, err := n.src.ExpiringLots(ctx, n.cfg.ExpiryWindow)
	if err != nil {
		return fmt.Errorf("expiring lots: %w", err)
	}
	low, err := n.src.LowStock(ctx)
	if err != nil {
		return fmt.Errorf("low stock: %w", err)
	}

	text := n.compose(ctx, expiring, low)
	n.mu.Lock()
	defer n.mu.Unlock()
	if text == "" || text == n.last {
		n.last = text
		return nil
	}
	n.broadcast(text)
	n.last = text
	return nil
}

func (n *Notifier) compose(ctx context.Context, expiring []inventory.Lot, low []inventory.StockLevel) string {
	if len(expiring) == 0 && len(low) == 0 {
		return ""
	}
	var b strings.Builder
	if len(expiring) > 0 {
		fmt.Fprintf(&b, "⚠️ Expiring within %d days:\n", n.cfg.ExpiryWindow)
		for _, l := range expiring {
			fmt.Fprintf(&b, "— %s, lot %s: %d on hand, expires %s\n",
				n.itemName(ctx, l.ItemID), l.Code, l.QtyOnHand, l.ExpiryDate.Format(time.DateOnly))
		}
	}
	if len(low) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("📉 Low stock:\n")
		for _, s := range low {
			if s.QtyOnHand <= 0 {
				fmt.Fprintf(&b, "— %s: out of stock\n", s.ItemName)
				continue
			}
			fmt.Fprintf(&b, "— %s: %d left, reorder at %d\n", s.ItemName, s.QtyOnHand, s.ReorderThreshold)
		}
	}
	return strings.TrimSpace(b.String())
}

func (n *Notifier) itemName(ctx context.Context, id int64) string {
	if it, err := n.items.Item(ctx, id); err == nil && it != nil {
		return it.Name
	}
	return fmt.Sprintf("Item #%d", id)
}

// broadcast sends text to every configured chat once.
func (n *Notifier) broadcast(text string) {
	sent := map[int64]struct{}{}
	for _, chatID := range n.cfg.ChatIDs {
		if chatID == 0 {
			continue
		}
		if _, ok := sent[chatID]; ok {
			continue
		}
		if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.log.Error("send failed", "chat_id", chatID, "err", err)
			continue
		}
		sent[chatID] = struct{}{}
	}
}
