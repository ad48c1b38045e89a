package utils

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Responder sends interaction replies, logging failures instead of
// returning them.
type Responder struct {
	s   *discordgo.Session
	log *zap.Logger
}

func NewResponder(s *discordgo.Session, log *zap.Logger) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Responder{s: s, log: log}
}

func (r *Responder) respond(i *discordgo.Interaction, data *discordgo.InteractionResponseData, what string) {
	err := r.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		r.log.Warn("failed to send "+what, zap.String("interaction", i.ID), zap.Error(err))
	}
}

// Error sends an ephemeral error message.
func (r *Responder) Error(i *discordgo.Interaction, message string) {
	r.respond(i, &discordgo.InteractionResponseData{
		Content: "❌ " + message,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, "error response")
}

// Ephemeral sends a message only the invoker can see.
func (r *Responder) Ephemeral(i *discordgo.Interaction, message string) {
	r.respond(i, &discordgo.InteractionResponseData{
		Content: message,
		Flags:   discordgo.MessageFlagsEphemeral,
	}, "ephemeral response")
}

// EphemeralEmbed sends an embed with optional components only the invoker
// can see.
func (r *Responder) EphemeralEmbed(i *discordgo.Interaction, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	r.respond(i, &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
		Flags:      discordgo.MessageFlagsEphemeral,
	}, "embed response")
}

// Defer acknowledges the interaction, optionally as ephemeral.
func (r *Responder) Defer(i *discordgo.Interaction, ephemeral bool) error {
	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		response.Data = &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		}
	}
	return r.s.InteractionRespond(i, response)
}

// FollowUp replaces the deferred response's content.
func (r *Responder) FollowUp(i *discordgo.Interaction, message string) {
	if _, err := r.s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &message}); err != nil {
		r.log.Warn("failed to edit interaction response", zap.String("interaction", i.ID), zap.Error(err))
	}
}

// Update rewrites the message a component was clicked on.
func (r *Responder) Update(i *discordgo.Interaction, content string, embeds []*discordgo.MessageEmbed) {
	components := []discordgo.MessageComponent{}
	err := r.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Embeds:     embeds,
			Components: components,
		},
	})
	if err != nil {
		r.log.Warn("failed to update message", zap.String("interaction", i.ID), zap.Error(err))
	}
}

// Send posts a follow-up message to the interaction's channel thread.
func (r *Responder) Send(i *discordgo.Interaction, content string, ephemeral bool) {
	params := &discordgo.WebhookParams{Content: content}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	if _, err := r.s.FollowupMessageCreate(i, true, params); err != nil {
		r.log.Warn("failed to send follow-up", zap.String("interaction", i.ID), zap.Error(err))
	}
}
