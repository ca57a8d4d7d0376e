package conversation

import "github.com/bdobrica/Hikari/internal/hikari/modules"

// Button is an inline button; Data is sent back as Event.Callback.
type Button struct {
	Label string
	Data  string
}

// Reply is what the transport shows after an event. An empty Text with a
// Notice only acknowledges a button press.
type Reply struct {
	Text    string
	Buttons [][]Button
	// Notice is a short toast attached to a callback acknowledgement.
	Notice string
}

func row(b ...Button) []Button { return b }

// Callback data understood by the machine besides module keys.
const (
	CbMainMenu        = "main_menu"
	CbResetDraft      = "reset_draft"
	CbExitEmail       = "exit_email_mode"
	CbRecipientMenu   = "recipient_menu"
	CbEditRecipient   = "edit_recipient"
	CbResetRecipient  = "reset_recipient"
	CbBackToEmailMenu = "back_to_email_menu"
	CbShowAttachments = "show_attachments"
	CbMemoryStats     = "chat_memory_stats"
	CbMemoryClear     = "chat_memory_clear"
	CbMemoryToggle    = "chat_memory_toggle"
)

func menuButtons(reg *modules.Registry) [][]Button {
	var out [][]Button
	for _, d := range reg.Menu() {
		out = append(out, row(Button{Label: d.Label, Data: d.Key}))
	}
	return out
}

func backButtons() [][]Button {
	return [][]Button{row(Button{Label: "🏠 Main menu", Data: CbMainMenu})}
}

func emailButtons() [][]Button {
	return [][]Button{
		row(Button{Label: "📮 Recipient", Data: CbRecipientMenu}, Button{Label: "📎 Attachments", Data: CbShowAttachments}),
		row(Button{Label: "🗑 Reset draft", Data: CbResetDraft}),
		row(Button{Label: "🏠 Exit email mode", Data: CbExitEmail}),
	}
}

func recipientButtons() [][]Button {
	return [][]Button{
		row(Button{Label: "✏️ Change", Data: CbEditRecipient}, Button{Label: "↩️ Use default", Data: CbResetRecipient}),
		row(Button{Label: "⬅️ Back", Data: CbBackToEmailMenu}),
	}
}

func chatButtons(hybrid bool) [][]Button {
	toggle := "🔀 Use long-term memory"
	if hybrid {
		toggle = "🔀 Use session memory only"
	}
	return [][]Button{
		row(Button{Label: "🧠 Memory stats", Data: CbMemoryStats}, Button{Label: "🧹 Clear memory", Data: CbMemoryClear}),
		row(Button{Label: toggle, Data: CbMemoryToggle}),
		row(Button{Label: "🏠 Main menu", Data: CbMainMenu}),
	}
}
