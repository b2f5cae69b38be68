// Package bot is the command dispatcher: it parses incoming commands,
// decides admin authorization and maps each command onto one ledger or
// stats operation. The ledger itself never checks caller identity.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"nexapicks-bot/internal/ledger"
	"nexapicks-bot/internal/models"
	"nexapicks-bot/internal/notify"
	"nexapicks-bot/internal/stats"
	"nexapicks-bot/internal/store"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

type Bot struct {
	Instance *telego.Bot
	Ledger   *ledger.Ledger
	Store    store.Store
	Notifier notify.Notifier
	AdminID  int64
}

func NewBot(tgBot *telego.Bot, ld *ledger.Ledger, st store.Store, notifier notify.Notifier, adminID int64) *Bot {
	return &Bot{
		Instance: tgBot,
		Ledger:   ld,
		Store:    st,
		Notifier: notifier,
		AdminID:  adminID,
	}
}

func (b *Bot) Start() {
	updates, _ := b.Instance.UpdatesViaLongPolling(context.Background(), nil)

	handler, _ := th.NewBotHandler(b.Instance, updates)

	// /start - register the user and show the plans
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		userID := strconv.FormatInt(message.From.ID, 10)

		if _, err := b.Ledger.RegisterUser(ctx.Context(), userID, message.From.Username, message.From.FirstName, time.Now()); err != nil {
			log.Printf("Failed to register user %s: %v", userID, err)
		}

		text := fmt.Sprintf("🎯 ¡Bienvenido a NexaPicks VIP, %s!\n\n"+
			"Planes:\n"+
			"⚽ basico - 3.99€ (7 días)\n"+
			"🏀 combinada - 7.99€ (15 días)\n"+
			"💎 mensual - 29.99€ (30 días)\n\n"+
			"Comandos: /pagar /estado /tips /help", message.From.FirstName)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), text))
		return nil
	}, th.CommandEqual("start"))

	// /help
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		text := "📋 Comandos:\n\n" +
			"/start /pagar /estado /tips /comprartip [tip_id] /help\n\n" +
			"Admin:\n" +
			"/verificar [user_id] [plan]\n" +
			"/verificartip [user_id] [tip_id]\n" +
			"/creartip [cuota] [precio] [descripción]\n" +
			"/enviartip [mensaje]\n" +
			"/stats"
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(update.Message.Chat.ID), text))
		return nil
	}, th.CommandEqual("help"))

	// /pagar - payment instructions
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		text := "💳 Realiza el pago por Bizum o transferencia y envía la captura al admin.\n" +
			"Tras la verificación recibirás el enlace al grupo VIP.\n\n" +
			"Planes: basico 3.99€ (7 días), combinada 7.99€ (15 días), mensual 29.99€ (30 días)"
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(update.Message.Chat.ID), text))
		return nil
	}, th.CommandEqual("pagar"))

	// /estado - subscription status
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		userID := strconv.FormatInt(message.From.ID, 10)

		user, ok := b.Ledger.GetUser(userID)
		if !ok {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ No estás registrado. Usa /start para comenzar."))
			return nil
		}

		now := time.Now()
		var text string
		switch {
		case user.ActiveAt(now):
			daysLeft := int(user.SubscriptionEnd.Sub(now).Hours() / 24)
			text = fmt.Sprintf("✅ Suscripción activa\n\n📅 Vence el: %s\n⏳ Días restantes: %d",
				user.SubscriptionEnd.Format("02/01/2006"), daysLeft)
		case user.SubscriptionEnd != nil:
			text = "❌ Suscripción expirada. Usa /pagar para renovar."
		default:
			text = "❌ Sin suscripción activa. Usa /pagar para ver los planes."
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), text))
		return nil
	}, th.CommandEqual("estado"))

	// /verificar [user_id] [plan] - admin verifies a subscription payment
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Este comando es solo para administradores."))
			return nil
		}

		args := commandArgs(message.Text)
		if len(args) < 2 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Uso: /verificar [user_id] [plan]\nPlanes: basico, combinada, mensual"))
			return nil
		}

		userID := args[0]
		plan := models.PlanKind(strings.ToLower(args[1]))

		newEnd, err := b.Ledger.ExtendSubscription(ctx.Context(), userID, plan, time.Now())
		if err != nil {
			if errors.Is(err, ledger.ErrInvalidPlan) {
				_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Plan inválido. Usa: basico, combinada, mensual"))
				return nil
			}
			log.Printf("Failed to verify payment for %s: %v", userID, err)
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("❌ Error: %v", err)))
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID),
			fmt.Sprintf("✅ Usuario %s verificado. Plan: %s, válido hasta %s", userID, plan, newEnd.Format("02/01/2006"))))
		return nil
	}, th.CommandEqual("verificar"))

	// /stats - admin report
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Este comando es solo para administradores."))
			return nil
		}

		snap, err := stats.Compute(ctx.Context(), b.Store, time.Now())
		if err != nil {
			log.Printf("Failed to compute stats: %v", err)
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("❌ Error: %v", err)))
			return nil
		}

		text := fmt.Sprintf("📊 Estadísticas\n\n"+
			"👥 Usuarios: %d\n"+
			"✅ Suscriptores activos: %d\n\n"+
			"💰 Ingresos estimados:\n"+
			"• basico: %d x 3.99€\n"+
			"• combinada: %d x 7.99€\n"+
			"• mensual: %d x 29.99€\n"+
			"• Total: %.2f€\n\n"+
			"🎯 Tips: %d creados, %d compras",
			snap.TotalUsers, snap.ActiveSubscribers,
			snap.PlanCounts[models.PlanBasic], snap.PlanCounts[models.PlanCombined], snap.PlanCounts[models.PlanMonthly],
			snap.Revenue, snap.TotalTips, snap.TotalPurchases)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), text))
		return nil
	}, th.CommandEqual("stats"))

	// /creartip [cuota] [precio] [descripción] - admin adds a tip
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Este comando es solo para administradores."))
			return nil
		}

		args := commandArgs(message.Text)
		if len(args) < 3 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Uso: /creartip [cuota] [precio] [descripción]"))
			return nil
		}

		tipID, err := b.Ledger.CreateTip(ctx.Context(), args[0], args[1], strings.Join(args[2:], " "), time.Now())
		if err != nil {
			log.Printf("Failed to create tip: %v", err)
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("❌ Error: %v", err)))
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("✅ Tip creado con ID: %s", tipID)))
		return nil
	}, th.CommandEqual("creartip"))

	// /tips - tip catalog
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message

		entries := b.Ledger.ListTips()
		if len(entries) == 0 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ No hay tips disponibles actualmente."))
			return nil
		}

		var sb strings.Builder
		sb.WriteString("🎯 Tips disponibles:\n\n")
		for _, e := range entries {
			fmt.Fprintf(&sb, "Cuota: %s | Precio: %s€\n📝 %s\n🆔 /comprartip %s\n\n", e.Tip.Odds, e.Tip.Price, e.Tip.Description, e.ID)
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), sb.String()))
		return nil
	}, th.CommandEqual("tips"))

	// /comprartip [tip_id] - payment instructions for one tip
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		userID := strconv.FormatInt(message.From.ID, 10)

		args := commandArgs(message.Text)
		if len(args) < 1 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Uso: /comprartip [tip_id]"))
			return nil
		}

		tipID := args[0]
		tip, ok := b.Ledger.GetTip(tipID)
		if !ok {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Tip no encontrado."))
			return nil
		}
		if b.Ledger.HasPurchased(userID, tipID) {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Ya has comprado este tip."))
			return nil
		}

		text := fmt.Sprintf("💳 Comprar tip\n\nCuota: %s\nPrecio: %s€\n\n"+
			"Realiza el pago, envía la captura al admin y menciona el ID del tip: %s.\n"+
			"Recibirás el tip una vez verificado el pago.", tip.Odds, tip.Price, tipID)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), text))
		return nil
	}, th.CommandEqual("comprartip"))

	// /verificartip [user_id] [tip_id] - admin verifies a tip payment
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Este comando es solo para administradores."))
			return nil
		}

		args := commandArgs(message.Text)
		if len(args) < 2 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Uso: /verificartip [user_id] [tip_id]"))
			return nil
		}

		userID, tipID := args[0], args[1]
		if _, err := b.Ledger.PurchaseTip(ctx.Context(), userID, tipID, time.Now()); err != nil {
			switch {
			case errors.Is(err, ledger.ErrTipNotFound):
				_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Tip no encontrado."))
			case errors.Is(err, ledger.ErrAlreadyPurchased):
				_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ El usuario ya compró este tip."))
			default:
				log.Printf("Failed to verify tip purchase %s/%s: %v", userID, tipID, err)
				_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("❌ Error: %v", err)))
			}
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("✅ Tip %s entregado al usuario %s", tipID, userID)))
		return nil
	}, th.CommandEqual("verificartip"))

	// /enviartip [mensaje] - admin broadcast to active subscribers
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if !b.isAdmin(message.From.ID) {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Este comando es solo para administradores."))
			return nil
		}

		args := commandArgs(message.Text)
		if len(args) < 1 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Uso: /enviartip [mensaje]"))
			return nil
		}

		text := fmt.Sprintf("🎯 Nuevo tip de NexaPicks\n\n%s", strings.Join(args, " "))
		sent := 0
		for _, userID := range b.Ledger.ListActiveSubscribers(time.Now()) {
			if err := b.Notifier.SendMessage(ctx.Context(), userID, text); err != nil {
				log.Printf("Failed to broadcast to %s: %v", userID, err)
				continue
			}
			sent++
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("✅ Tip enviado a %d suscriptores activos", sent)))
		return nil
	}, th.CommandEqual("enviartip"))

	handler.Start()
}

func (b *Bot) isAdmin(id int64) bool {
	return id == b.AdminID
}

// commandArgs splits everything after the command name.
func commandArgs(text string) []string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return nil
	}
	return parts[1:]
}
