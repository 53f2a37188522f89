package voicegateway

import (
	"github.com/lucidwire/discordvoice/pkg/util"
)

// newTwoSlotRace constructs the Hello-vs-Ready / Hello-vs-Resumed race
// pattern from spec.md §9, backed by the shared generic implementation.
func newTwoSlotRace[A, B any]() *util.Race2[A, B] {
	return util.NewRace2[A, B]()
}
