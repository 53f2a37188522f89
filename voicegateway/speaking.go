package voicegateway

// Speaking builds the Speaking opcode's data payload for the given
// ssrc and flag set, ready to be sent on a Handle's Outbound channel.
func Speaking(ssrc uint32, flags SpeakingFlag) OutboundMessage {
	return OutboundMessage{
		Op: opSpeaking,
		Data: speakingData{
			Speaking: int(flags),
			Delay:    0,
			SSRC:     ssrc,
		},
	}
}
