package laundry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lavanderia-bot/laundrybot/internal/weather"
)

// Outbound is one chat message to deliver to the originating conversation.
type Outbound struct {
	Text     string
	Mentions []string
}

// Mention renders an identity the way chat clients highlight it.
func Mention(id string) string {
	user, _, _ := strings.Cut(id, "@")
	return "@" + user
}

func hhmm(t time.Time) string {
	return t.Format("15:04")
}

// FormatDuration renders d as "2h 30min".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dmin", h, m)
}

func greeting(local time.Time) string {
	switch h := local.Hour(); {
	case h < 12:
		return "Bom dia"
	case h < 18:
		return "Boa tarde"
	default:
		return "Boa noite"
	}
}

func startedReply(p Policy, s Session) Outbound {
	start := p.Local(s.StartedAt)
	return Outbound{
		Text: fmt.Sprintf("%s %s! 🧺 Lavagem iniciada às %s.\n⏱️ Termina às %s",
			greeting(start), Mention(s.Holder), hhmm(start), hhmm(p.Local(s.ScheduledEnd))),
		Mentions: []string{s.Holder},
	}
}

func outsideWindowReply(p Policy, requester string) Outbound {
	return Outbound{
		Text: fmt.Sprintf("❌ %s, não é possível iniciar a lavagem fora do horário permitido.\n"+
			"🕗 As lavagens devem ser iniciadas entre %02dh e %02dh para garantir o funcionamento adequado e o respeito aos horários de silêncio.",
			Mention(requester), p.OpenHour, p.CloseHour),
		Mentions: []string{requester},
	}
}

func busyReply(p Policy, requester string, s Session) Outbound {
	return Outbound{
		Text: fmt.Sprintf("⛔ %s, a máquina está em uso por %s até %s.\n👉 Use a opção *5* para entrar na fila.",
			Mention(requester), Mention(s.Holder), hhmm(p.Local(s.ScheduledEnd))),
		Mentions: []string{requester, s.Holder},
	}
}

func alreadyHolderReply(p Policy, s Session) Outbound {
	return Outbound{
		Text: fmt.Sprintf("ℹ️ %s, você já está com uma lavagem ativa até %s.\n👉 Use a opção *4* para finalizar.",
			Mention(s.Holder), hhmm(p.Local(s.ScheduledEnd))),
		Mentions: []string{s.Holder},
	}
}

func warningReply(p Policy, s Session) Outbound {
	return Outbound{
		Text: fmt.Sprintf("🔔 %s, sua lavagem vai finalizar em %d minutos.",
			Mention(s.Holder), int(p.WarningLead/time.Minute)),
		Mentions: []string{s.Holder},
	}
}

func finishedReply(f Finished) Outbound {
	who := Mention(f.Session.Holder)
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Lavagem finalizada!\n👤 %s\n🕒 Duração: %s\n", who, FormatDuration(f.Duration))
	if f.Overtime {
		fmt.Fprintf(&b, "⚠️ Tempo ultrapassado, %s!", who)
	} else {
		fmt.Fprintf(&b, "🎉 Bom trabalho, %s!", who)
	}
	return Outbound{Text: b.String(), Mentions: []string{f.Session.Holder}}
}

func finishRejectedReply() Outbound {
	return Outbound{Text: "⚠️ Nenhuma lavagem ativa ou você não está usando a máquina."}
}

func promotedReply(next string) Outbound {
	return Outbound{
		Text:     fmt.Sprintf("🔔 %s, a máquina está livre!\n👉 Use a opção *3* para iniciar sua lavagem.", Mention(next)),
		Mentions: []string{next},
	}
}

func alreadyQueuedReply(requester string, position int) Outbound {
	return Outbound{
		Text:     fmt.Sprintf("⏳ %s, você já está na fila (posição %d).", Mention(requester), position),
		Mentions: []string{requester},
	}
}

func holderEnqueueReply(requester string) Outbound {
	return Outbound{
		Text:     fmt.Sprintf("🧺 %s, você já está usando a máquina.\n👉 Use a opção *4* quando terminar.", Mention(requester)),
		Mentions: []string{requester},
	}
}

func machineFreeReply() Outbound {
	return Outbound{Text: "✅ A máquina está *livre* no momento.\n👉 Use a opção *3* para iniciar a lavagem."}
}

func joinedReply(requester string, position, total int) Outbound {
	return Outbound{
		Text: fmt.Sprintf("📝 %s, você foi adicionado à fila!\n🔢 Posição: %d\n👥 Total na fila: %d pessoa(s)",
			Mention(requester), position, total),
		Mentions: []string{requester},
	}
}

func notQueuedReply() Outbound {
	return Outbound{Text: "❌ Você 🫵🏻 não está na fila."}
}

func leftReply() Outbound {
	return Outbound{Text: "🚪 Você saiu da fila com sucesso."}
}

func queueSnapshotReply(entries []QueueEntry) Outbound {
	lines := make([]string, 0, len(entries))
	mentions := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("🔢 %d - %s", e.Position, Mention(e.Identity)))
		mentions = append(mentions, e.Identity)
	}
	return Outbound{
		Text:     "📋 Fila atualizada:\n" + strings.Join(lines, "\n"),
		Mentions: mentions,
	}
}

func queueEmptyReply() Outbound {
	return Outbound{Text: "🆓 A fila está vazia."}
}

func shuffleReply(load Load, capGrams int) Outbound {
	lines := make([]string, 0, len(load.Items))
	for _, item := range load.Items {
		lines = append(lines, fmt.Sprintf("- %dx %s", item.Count, item.Name))
	}
	capKg := strconv.FormatFloat(float64(capGrams)/1000, 'f', -1, 64)
	return Outbound{
		Text: fmt.Sprintf("🧺 Lavagem sorteada (até %skg):\n%s\n\nPeso total estimado: %.2fkg",
			capKg, strings.Join(lines, "\n"), load.Kilograms()),
	}
}

func weatherReply(r weather.Report) Outbound {
	return Outbound{
		Text: fmt.Sprintf("🌤️ *Previsão do Tempo - %s*\n\n📅 *Data:* %s\n🌡️ *Temperatura:* %d°C\n☁️ *Condição:* %s\n💨 *Vento:* %s\n🌅 *Nascer do sol:* %s\n🌇 *Pôr do sol:* %s",
			r.City, r.Date, r.TempC, r.Description, r.WindSpeed, r.Sunrise, r.Sunset),
	}
}

func weatherFailedReply() Outbound {
	return Outbound{Text: "⚠️ Erro ao obter previsão do tempo."}
}
