package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

// BuildNotifyMessage creates Block Kit blocks for a scenario condition's
// ActionNotify delivery. target is the scenario's configured notify
// destination (a free-form label the scenario author chose, e.g. a
// subsystem name); it's surfaced in the message so an on-call reader
// knows which scenario condition fired without opening the dashboard.
func BuildNotifyMessage(target, message string) []goslack.Block {
	text := fmt.Sprintf(":bell: *Simulation alert* (%s)\n%s", target, message)
	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}
