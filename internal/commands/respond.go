package commands

import (
	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"
)

// respondText sends an immediate interaction response carrying a
// single text message, the pattern every command here uses to answer
// within Discord's interaction timeout before doing any slower work.
func respondText(s *session.Session, interactionID discord.InteractionID, token, message string) error {
	return s.RespondInteraction(interactionID, token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(message),
		},
	})
}

// respondError sends an ephemeral error response and logs the failure
// if Discord rejects the response itself.
func respondError(logger *zap.Logger, s *session.Session, interactionID discord.InteractionID, token, message string) error {
	err := s.RespondInteraction(interactionID, token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString("❌ " + message),
			Flags:   discord.EphemeralMessage,
		},
	})
	if err != nil {
		logger.Error("commands: failed to send error response", zap.Error(err), zap.String("message", message))
	}
	return err
}
