package conversation

// User-facing texts.
const (
	startText           = "👋 Hi! Pick a module:"
	menuText            = "📋 Main menu:"
	echoText            = "You said: %s"
	safetyNetText       = "ℹ️ Nothing to do with that in %s mode. Use /menu to pick a module."
	unknownActionNotice = "Unknown action"
	welcomeBackNotice   = "Back to the main menu"
	alreadyInModeNotice = "ℹ️ Already in %s mode"
	notConfiguredText   = "⚠️ %s is not configured on this bot."
	notConfiguredNotice = "Module not configured"
	idText              = "🆔 Your identifiers:\n\n👤 User ID: %s\n💬 Chat ID: %s"
	idNotice            = "IDs ready"

	emailBannerText      = "✉️ Email mode\n\nRecipient: %s\nAttached files: %d\n\nSend the email as text: the first line is the subject, the rest is the body. Files sent before the text are attached; a file with a two-line caption is sent right away."
	emailExitText        = "📋 Left email mode. Your draft is kept.\n\nMain menu:"
	recipientMenuText    = "📮 Current recipient: %s"
	recipientPromptText  = "✏️ Send the new recipient address:"
	recipientSavedText   = "✅ Recipient set to %s"
	recipientResetText   = "↩️ Recipient reset to the default: %s"
	recipientSameNotice  = "ℹ️ Recipient unchanged"
	recipientFirstText   = "📮 Send the recipient address first, or go back."
	invalidEmailText     = "❌ That does not look like an email address. Try again:"
	noRecipientText      = "❌ No recipient set. Use 📮 Recipient to add one."
	invalidFormatText    = "❌ Send at least two lines: the subject on the first line and the body below."
	attachmentsEmptyText = "📎 No files attached."
	attachmentsListText  = "📎 Attached files (%d):\n%s"
	draftResetText       = "🗑 Draft cleared. The recipient is kept."
	attachedText         = "📎 File «%s» attached."
	attachedPendingText  = "📎 File «%s» added to the email being sent."
	sendingPendingText   = "⏳ An email is already being sent. Use the menu to exit or reset."
	sendCancelledText    = "🗑 The draft was reset before sending; nothing was sent."
	sentText             = "✅ Email sent."
	sentWithFilesText    = "✅ Email with %d attachment(s) sent."
	sendFailedText       = "❌ The email could not be sent: %s\nAttachments are kept; send the text again to retry."
	downloadFailedText   = "❌ Could not download the file: %s"

	chatActivatedText   = "🤖 Chat mode on. Send text, a voice message, an audio file, a video note or a photo."
	thinkingText        = "🤔 Thinking…"
	processingAudioText = "🎧 Processing audio…"
	recognizedText      = "🎧 Recognized: %s"
	chatAnswerText      = "🤖 %s"
	chatAudioAnswerText = "🎤 → 🤖\n\nRecognized: %s\n\nAnswer: %s"
	chatAudioFailedText = "🎤 Recognized: %s\n\n❌ Could not get an answer: %s"
	chatTimeoutText     = "⏰ The model took too long to answer. Try again."
	chatErrorText       = "❌ Model error: %s"
	chatEmptyText       = "🤷 The model returned an empty answer."
	rateLimitedText     = "🐢 Too many messages. Wait a minute and try again."
	chatUnsupportedText = "❌ This message type is not supported in chat mode. Send text, voice, audio, a video note or a photo."
	visionOffText       = "🖼 Image analysis is not available with model %s."
	visionFailedText    = "❌ Could not process the image: %s"
	visionDefaultPrompt = "Describe this image."
	memoryStatsText     = "🧠 Memory\n\nMode: %s\nBackend: %s\nSession: %d/%d messages"
	memoryClearedText   = "🧹 Memory cleared."
	memoryPartialText   = "⚠️ Session memory cleared, but long-term memory could not be cleared."
	memoryToggledText   = "🔀 Memory mode: %s"
	memoryToggleErrText = "❌ Could not save the memory mode, still %s: %s"

	audioActivatedText = "🎙 Transcription mode on. Send a voice message, an audio file or a video note.\n\nFormats: %s\nMax size: %d MB\nLanguage: %s"
	audioReminderText  = "🎙 Send a voice message, an audio file or a video note to transcribe."
	audioHintText      = "🎙 That is not audio. Send a voice message, an audio file or a video note."
	audioTooLargeText  = "❌ The file is too large (%.1f MB, limit %d MB)."
	audioFormatText    = "❌ Unsupported audio format. Supported: %s"
	transcriptionText  = "📝 Transcription:\n\n%s"
	noSpeechText       = "🤷 No speech recognised."
	transcribeFailText = "❌ Transcription failed: %s"
)
