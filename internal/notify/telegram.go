package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Telegram implements Notifier on top of the bot API. Invite links target the
// configured VIP group and are limited to one member.
type Telegram struct {
	Bot     *telego.Bot
	GroupID int64
}

func NewTelegram(bot *telego.Bot, groupID int64) *Telegram {
	return &Telegram{Bot: bot, GroupID: groupID}
}

func (t *Telegram) CreateInviteLink(ctx context.Context, expiresAt time.Time) (string, error) {
	link, err := t.Bot.CreateChatInviteLink(ctx, &telego.CreateChatInviteLinkParams{
		ChatID:      tu.ID(t.GroupID),
		MemberLimit: 1,
		ExpireDate:  expiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: create invite link: %v", ErrDelivery, err)
	}
	return link.InviteLink, nil
}

func (t *Telegram) SendMessage(ctx context.Context, userID string, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid user id %q: %v", ErrDelivery, userID, err)
	}

	if _, err := t.Bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("%w: send to %s: %v", ErrDelivery, userID, err)
	}
	return nil
}
