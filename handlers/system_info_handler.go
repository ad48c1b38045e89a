package handlers

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"ceniza-bot/bot"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const defaultPingTimeout = 3 * time.Second

// pingResult is the outcome of a TCP connect to the game server.
type pingResult struct {
	Online  bool
	Latency time.Duration
	Err     error
}

func pingServer(ctx context.Context, ip, port string, timeout time.Duration) pingResult {
	d := net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, port))
	if err != nil {
		return pingResult{Err: err}
	}
	latency := time.Since(start)
	_ = conn.Close()
	return pingResult{Online: true, Latency: latency}
}

func (p pingResult) String() string {
	if p.Online {
		return fmt.Sprintf("🟢 En línea (%d ms)", p.Latency.Milliseconds())
	}
	return "🔴 Sin respuesta"
}

func dbSizeMB(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%.1f MB", float64(fi.Size())/1024/1024)
}

// ServerStatusHandler answers /serverstatus with a connect check of the game
// server and the bot host's stats.
func ServerStatusHandler(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	timeout := defaultPingTimeout
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "timeout_ms" {
			timeout = time.Duration(opt.IntValue()) * time.Millisecond
		}
	}
	if err := b.Respond.Defer(i.Interaction, false); err != nil {
		b.Log.Warn("failed to defer serverstatus", zap.Error(err))
		return
	}

	cfg := b.Server.Get()
	ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
	defer cancel()
	ping := pingServer(ctx, cfg.IP, cfg.Port, timeout)
	if ping.Err != nil {
		b.Log.Debug("game server ping failed", zap.String("ip", cfg.IP), zap.String("port", cfg.Port), zap.Error(ping.Err))
	}

	cpuCount, _ := cpu.Counts(true)
	cpuPercent := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPercent = pct[0]
	}
	memory := "-"
	if vm, err := mem.VirtualMemory(); err == nil {
		memory = fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024)
	}
	osName, uptime := runtime.GOOS, "-"
	if hi, err := host.Info(); err == nil {
		osName = hi.Platform + " " + hi.PlatformVersion
		uptime = (time.Duration(hi.Uptime) * time.Second).String()
	}

	embed := &discordgo.MessageEmbed{
		Title: "Estado del servidor",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🎮 Terraria", Value: fmt.Sprintf("`%s:%s`\n%s", cfg.IP, cfg.Port, ping), Inline: false},
			{Name: "💻 OS", Value: osName, Inline: true},
			{Name: "⏳ Uptime", Value: uptime, Inline: true},
			{Name: "🐹 Go", Value: runtime.Version(), Inline: true},
			{Name: "🔼 CPUs", Value: fmt.Sprintf("%d", cpuCount), Inline: true},
			{Name: "🔥 CPU", Value: fmt.Sprintf("%.1f%%", cpuPercent), Inline: true},
			{Name: "🧠 Memoria", Value: memory, Inline: true},
			{Name: "🗃️ Base de datos", Value: dbSizeMB(b.GetConfig().DBPath), Inline: true},
			{Name: "⏱️ Latencia WS", Value: s.HeartbeatLatency().String(), Inline: true},
			{Name: "🚀 Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Monitor · " + time.Now().Format("15:04"),
		},
	}

	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		b.Log.Warn("failed to send serverstatus", zap.Error(err))
	}
}
