package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tghelpers "github.com/m3rciful/coachbot/core/telegram/helpers"
	"github.com/m3rciful/coachbot/internal/notify"
	"github.com/m3rciful/coachbot/internal/payment"
	"github.com/m3rciful/coachbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

// command adapts a command handler the way callback does for buttons.
func (b *Bot) command(c tele.Context, fn func(ctx context.Context, userID int64) error) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return b.report(ctx, user.ID, fn(ctx, user.ID))
}

func (b *Bot) onStart(c tele.Context) error {
	return b.command(c, func(ctx context.Context, userID int64) error {
		user := c.Sender()
		if _, err := b.machine.Start(ctx, workflow.Profile{
			UserID:    userID,
			Username:  user.Username,
			FirstName: user.FirstName,
		}); err != nil {
			return err
		}
		if err := tghelpers.SendText(c, txtWelcome, b.mainKeyboard(userID)); err != nil {
			return err
		}
		return b.reply(c, b.view.Hub(b.machine.Status(ctx, userID)))
	})
}

func (b *Bot) onStatus(c tele.Context) error {
	return b.command(c, func(ctx context.Context, userID int64) error {
		if args := c.Args(); len(args) > 0 && b.admins.IsAdmin(userID) {
			target, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return b.replyText(c, "شناسه کاربر نامعتبر است.")
			}
			return b.adminStatus(ctx, c, target)
		}
		st := b.machine.Status(ctx, userID)
		snap, _ := b.machine.Snapshot(ctx, userID)
		return b.reply(c, b.view.Status(st, snap))
	})
}

func (b *Bot) adminStatus(ctx context.Context, c tele.Context, target int64) error {
	snap, err := b.machine.Snapshot(ctx, target)
	if err != nil {
		return err
	}
	payments, err := b.machine.Sessions.LoadPayments(ctx, target)
	if err != nil {
		return err
	}
	return b.reply(c, b.view.AdminStatus(b.machine.Status(ctx, target), snap, payments))
}

func (b *Bot) onCancel(c tele.Context) error {
	return b.command(c, func(ctx context.Context, userID int64) error {
		cleared, err := b.machine.ReturnToHub(ctx, userID, "cancel")
		if err != nil {
			return err
		}
		if len(cleared) == 0 {
			return b.replyText(c, txtNothingToDo)
		}
		if err := b.replyText(c, txtCancelled); err != nil {
			return err
		}
		return b.reply(c, b.view.Hub(b.machine.Status(ctx, userID)))
	})
}

func (b *Bot) onQuestionnaire(c tele.Context) error {
	return b.command(c, func(ctx context.Context, userID int64) error {
		return b.startQuestionnaire(ctx, userID)
	})
}

func (b *Bot) onAdmin(c tele.Context) error {
	return b.replyText(c, txtAdminHelp)
}

func (b *Bot) onPending(c tele.Context) error {
	return b.command(c, func(ctx context.Context, _ int64) error {
		recs, err := b.machine.Ledger.Pending(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return b.replyText(c, txtNoPending)
		}
		if err := b.replyText(c, fmt.Sprintf("⏳ %d پرداخت در انتظار تایید:", len(recs))); err != nil {
			return err
		}
		for _, rec := range recs {
			if err := b.reply(c, b.view.PendingItem(rec)); err != nil {
				return err
			}
		}
		return nil
	})
}

// parseGrant reads "<user> <course> <n|unlimited>".
func parseGrant(args []string) (int64, string, int, error) {
	if len(args) != 3 {
		return 0, "", 0, fmt.Errorf("want 3 arguments, got %d", len(args))
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, "", 0, fmt.Errorf("user id: %w", err)
	}
	if strings.EqualFold(args[2], "unlimited") {
		return target, args[1], -1, nil
	}
	n, err := strconv.Atoi(args[2])
	if err != nil || n <= 0 {
		return 0, "", 0, fmt.Errorf("count must be a positive number or 'unlimited'")
	}
	return target, args[1], n, nil
}

func (b *Bot) onGrant(c tele.Context) error {
	return b.command(c, func(ctx context.Context, adminID int64) error {
		target, course, n, err := parseGrant(c.Args())
		if err != nil {
			return b.replyText(c, txtGrantUsage)
		}
		return b.grant(ctx, c, adminID, target, course, n)
	})
}

func (b *Bot) grant(ctx context.Context, c tele.Context, adminID, target int64, course string, n int) error {
	total, err := b.coord.GrantExtraAttempts(ctx, target, course, n, adminID)
	if err != nil {
		return err
	}
	extra := strconv.Itoa(total)
	if total >= payment.UnlimitedAttempts {
		extra = "نامحدود"
	}
	if err := b.replyText(c, fmt.Sprintf("✅ فرصت اضافه برای کاربر %d در دوره %s: %s", target, course, extra)); err != nil {
		return err
	}
	// The user may have blocked the bot; the grant stands either way.
	_ = b.notifier.User(ctx, target, notify.Message{Text: txtGrantedUser, Plain: true}, "")
	return nil
}

func (b *Bot) onUpload(c tele.Context) error {
	return b.command(c, func(ctx context.Context, adminID int64) error {
		args := c.Args()
		if len(args) != 2 {
			return b.replyText(c, txtUploadUsage)
		}
		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return b.replyText(c, txtUploadUsage)
		}
		if err := b.machine.BeginPlanUpload(ctx, adminID, target, args[1]); err != nil {
			return err
		}
		return b.replyText(c, txtPlanAskFile)
	})
}
