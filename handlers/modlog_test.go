package handlers

import (
	"strings"
	"testing"

	"ceniza-bot/model"

	"github.com/stretchr/testify/assert"
)

func TestModLogLine(t *testing.T) {
	ok := model.ModerationRecord{
		TargetID:    "20",
		RequesterID: "10",
		ActionType:  string(model.ActionKick),
		Reason:      "spam",
		Success:     true,
		Timestamp:   1700000000,
	}
	assert.Equal(t, "✅ <t:1700000000:R> **Expulsar** <@20> · por <@10> · spam", modLogLine(ok))

	failed := ok
	failed.ActionType = string(model.ActionBan)
	failed.Reason = ""
	failed.Success = false
	failed.FailReason = "missing permissions"
	assert.Equal(t, "❌ <t:1700000000:R> **Banear** <@20> · por <@10> (missing permissions)", modLogLine(failed))
}

func TestModLogText(t *testing.T) {
	assert.Equal(t, msgModLogEmpty, modLogText(nil))

	records := make([]model.ModerationRecord, modLogMaxLines+3)
	for n := range records {
		records[n] = model.ModerationRecord{ActionType: string(model.ActionTimeout), Success: true}
	}
	out := modLogText(records)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, modLogMaxLines+1)
	assert.Equal(t, "… y 3 más", lines[len(lines)-1])
}
