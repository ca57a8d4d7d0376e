package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bdobrica/Hikari/internal/hikari/llm"
	"github.com/bdobrica/Hikari/internal/hikari/memory"
	"github.com/bdobrica/Hikari/internal/hikari/vision"
)

const previewRunes = 100

// truncate cuts s to n runes, adding "..." when something was cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (m *Machine) hybrid() bool { return m.deps.Memory.Mode() == memory.SourceHybrid }

func (m *Machine) params() llm.Params {
	return llm.Params{
		Model:               m.cfg.ChatModel,
		Temperature:         m.cfg.Temperature,
		MaxTokens:           m.cfg.MaxTokens,
		MaxCompletionTokens: m.cfg.MaxCompletionTokens,
	}
}

func (m *Machine) systemPrompt(mc memory.Context) string {
	if mc.Text == "" {
		return m.cfg.SystemPrompt
	}
	return m.cfg.SystemPrompt + "\n\n" + mc.Text
}

// complete runs one chat turn: context from memory, the completion call and,
// on success only, recording the exchange. recorded is what goes into memory
// as the user's side of the exchange.
func (m *Machine) complete(ctx context.Context, t *turn, user llm.Message, recorded string) (string, error) {
	scope := m.deps.Memory.Scope()
	mc := scope.BuildContext(ctx, string(t.user), recorded)
	if mc.Degraded {
		t.logger.Debug("chat context degraded to session memory")
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: m.systemPrompt(mc)}, user}
	answer, err := m.deps.Completer.Complete(ctx, msgs, m.params())
	if err != nil {
		return "", err
	}
	scope.Record(ctx, string(t.user), recorded, answer)
	return answer, nil
}

func (m *Machine) chatError(t *turn, err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		t.logger.Warn("chat completion timed out")
		return chatTimeoutText
	case errors.Is(err, llm.ErrEmptyResponse):
		return chatEmptyText
	default:
		t.logger.Error("chat completion failed", "err", err)
		return fmt.Sprintf(chatErrorText, userError(err))
	}
}

// admit checks configuration and the rate limit. A non-nil reply means the
// turn must stop.
func (m *Machine) admit(t *turn) *Reply {
	if m.deps.Completer == nil {
		return &Reply{Text: fmt.Sprintf(notConfiguredText, "Chat"), Buttons: backButtons()}
	}
	if m.deps.Limiter != nil && !m.deps.Limiter.Allow(string(t.user)) {
		t.logger.Info("chat turn rate limited")
		return &Reply{Text: rateLimitedText, Buttons: chatButtons(m.hybrid())}
	}
	return nil
}

func (m *Machine) chatText(ctx context.Context, t *turn, text string) Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Text: chatUnsupportedText, Buttons: chatButtons(m.hybrid())}
	}
	if r := m.admit(t); r != nil {
		return *r
	}
	ReportProgress(ctx, thinkingText)
	answer, err := m.complete(ctx, t, llm.Message{Role: llm.RoleUser, Content: text}, text)
	if err != nil {
		return Reply{Text: m.chatError(t, err), Buttons: chatButtons(m.hybrid())}
	}
	return Reply{Text: fmt.Sprintf(chatAnswerText, answer), Buttons: chatButtons(m.hybrid())}
}

// transcribe downloads and transcribes md. A non-empty failure is the reply
// text to show instead.
func (m *Machine) transcribe(ctx context.Context, t *turn, md *Media) (text, failure string) {
	if m.deps.Transcriber == nil {
		return "", fmt.Sprintf(notConfiguredText, "Transcription")
	}
	limitMB := int(m.cfg.MaxAudioBytes >> 20)
	if md.Size > m.cfg.MaxAudioBytes {
		return "", fmt.Sprintf(audioTooLargeText, float64(md.Size)/(1<<20), limitMB)
	}
	name := md.name()
	if md.Kind == MediaDocument || md.Kind == MediaAudio {
		if ext := md.ext(); ext != "" && !audioExtensions[ext] {
			return "", fmt.Sprintf(audioFormatText, supportedAudioFormats())
		}
	}

	ReportProgress(ctx, processingAudioText)
	data, err := download(ctx, md)
	if err != nil {
		t.logger.Warn("audio download failed", "kind", md.Kind.String(), "err", err)
		return "", fmt.Sprintf(downloadFailedText, err)
	}
	if int64(len(data)) > m.cfg.MaxAudioBytes {
		return "", fmt.Sprintf(audioTooLargeText, float64(len(data))/(1<<20), limitMB)
	}

	out, err := m.deps.Transcriber.Transcribe(ctx, llm.Audio{Filename: name, Data: data}, m.cfg.WhisperLanguage)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			t.logger.Warn("transcription timed out")
			return "", chatTimeoutText
		}
		t.logger.Error("transcription failed", "err", err)
		return "", fmt.Sprintf(transcribeFailText, userError(err))
	}
	if strings.TrimSpace(out) == "" {
		return "", noSpeechText
	}
	return out, ""
}

func (m *Machine) transcribeOnly(ctx context.Context, t *turn, md *Media) Reply {
	text, failure := m.transcribe(ctx, t, md)
	if failure != "" {
		return Reply{Text: failure, Buttons: backButtons()}
	}
	return Reply{Text: fmt.Sprintf(transcriptionText, text), Buttons: backButtons()}
}

func (m *Machine) chatAudio(ctx context.Context, t *turn, md *Media) Reply {
	if r := m.admit(t); r != nil {
		return *r
	}
	text, failure := m.transcribe(ctx, t, md)
	if failure != "" {
		return Reply{Text: failure, Buttons: chatButtons(m.hybrid())}
	}

	ReportProgress(ctx, fmt.Sprintf(recognizedText, truncate(text, previewRunes)))
	answer, err := m.complete(ctx, t, llm.Message{Role: llm.RoleUser, Content: text}, text)
	if err != nil {
		return Reply{Text: fmt.Sprintf(chatAudioFailedText, text, m.chatError(t, err)), Buttons: chatButtons(m.hybrid())}
	}
	return Reply{Text: fmt.Sprintf(chatAudioAnswerText, text, answer), Buttons: chatButtons(m.hybrid())}
}

func (m *Machine) chatImage(ctx context.Context, t *turn, md *Media) Reply {
	if !m.cfg.VisionEnabled || !vision.SupportsModel(m.cfg.ChatModel) {
		return Reply{Text: fmt.Sprintf(visionOffText, m.cfg.ChatModel), Buttons: chatButtons(m.hybrid())}
	}
	if r := m.admit(t); r != nil {
		return *r
	}

	ReportProgress(ctx, thinkingText)
	data, err := download(ctx, md)
	if err != nil {
		t.logger.Warn("image download failed", "err", err)
		return Reply{Text: fmt.Sprintf(downloadFailedText, err), Buttons: chatButtons(m.hybrid())}
	}
	img, err := vision.Prepare(data, m.cfg.VisionOptions)
	if err != nil {
		t.logger.Warn("image rejected", "err", err)
		return Reply{Text: fmt.Sprintf(visionFailedText, userError(err)), Buttons: chatButtons(m.hybrid())}
	}

	prompt := strings.TrimSpace(md.Caption)
	if prompt == "" {
		prompt = visionDefaultPrompt
	}
	msg := llm.Message{Role: llm.RoleUser, Content: prompt, ImageURL: img.DataURL, ImageDetail: img.Detail}
	answer, err := m.complete(ctx, t, msg, "[image] "+prompt)
	if err != nil {
		return Reply{Text: m.chatError(t, err), Buttons: chatButtons(m.hybrid())}
	}

	text := fmt.Sprintf(chatAnswerText, answer)
	if m.cfg.VisionShowCost {
		text += "\n\n" + vision.CostNote(img, m.cfg.ChatModel)
	}
	return Reply{Text: text, Buttons: chatButtons(m.hybrid())}
}

func (m *Machine) memoryStats(t *turn) Reply {
	s := m.deps.Memory.Stats(string(t.user))
	return Reply{
		Text:    fmt.Sprintf(memoryStatsText, modeLabel(s.Mode), s.Backend, s.SessionCount, s.SessionCapacity),
		Buttons: chatButtons(s.Mode == memory.SourceHybrid),
	}
}

func (m *Machine) memoryClear(ctx context.Context, t *turn) Reply {
	if !m.deps.Memory.ClearAll(ctx, string(t.user)) {
		return Reply{Text: memoryPartialText, Buttons: chatButtons(m.hybrid())}
	}
	return Reply{Text: memoryClearedText, Buttons: chatButtons(m.hybrid()), Notice: "Memory cleared"}
}

func (m *Machine) memoryToggle(ctx context.Context, t *turn) Reply {
	if m.deps.Mode == nil {
		return Reply{Notice: notConfiguredNotice}
	}
	enabled, err := m.deps.Mode.Toggle(ctx)
	if err != nil {
		t.logger.Error("memory mode toggle failed", "err", err)
		return Reply{
			Text:    fmt.Sprintf(memoryToggleErrText, modeLabel(sourceOf(enabled)), userError(err)),
			Buttons: chatButtons(enabled),
		}
	}
	t.logger.Info("memory mode toggled", "hybrid", enabled)
	return Reply{Text: fmt.Sprintf(memoryToggledText, modeLabel(sourceOf(enabled))), Buttons: chatButtons(enabled)}
}

func sourceOf(hybrid bool) memory.Source {
	if hybrid {
		return memory.SourceHybrid
	}
	return memory.SourceSession
}

func modeLabel(s memory.Source) string {
	if s == memory.SourceHybrid {
		return "hybrid (long-term + session)"
	}
	return "session only"
}

func (m *Machine) chatInfo(t *turn) Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 Chat settings\n\nModel: %s\n", m.cfg.ChatModel)
	if llm.IsReasoningModel(m.cfg.ChatModel) {
		fmt.Fprintf(&b, "Temperature: %.1f (ignored by reasoning models)\n", m.cfg.Temperature)
		fmt.Fprintf(&b, "Max completion tokens: %d\n", llm.EffectiveCompletionTokens(m.params()))
	} else {
		fmt.Fprintf(&b, "Temperature: %.1f\n", m.cfg.Temperature)
		fmt.Fprintf(&b, "Max tokens: %d\n", m.cfg.MaxTokens)
	}
	fmt.Fprintf(&b, "Vision: %s\n", onOff(m.cfg.VisionEnabled && vision.SupportsModel(m.cfg.ChatModel)))
	fmt.Fprintf(&b, "Memory: %s\n", modeLabel(m.deps.Memory.Mode()))
	if m.deps.Limiter != nil {
		fmt.Fprintf(&b, "Requests left this minute: %d\n", m.deps.Limiter.Remaining(string(t.user)))
	}
	fmt.Fprintf(&b, "Transcription language: %s\n", languageLabel(m.cfg.WhisperLanguage))
	fmt.Fprintf(&b, "Max audio size: %d MB", m.cfg.MaxAudioBytes>>20)

	buttons := backButtons()
	if t.sess.State == ChatActive {
		buttons = chatButtons(m.hybrid())
	}
	return Reply{Text: b.String(), Buttons: buttons}
}

func (m *Machine) audioActivatedText() string {
	return fmt.Sprintf(audioActivatedText, supportedAudioFormats(), m.cfg.MaxAudioBytes>>20, languageLabel(m.cfg.WhisperLanguage))
}

func supportedAudioFormats() string {
	exts := make([]string, 0, len(audioExtensions))
	for e := range audioExtensions {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return strings.Join(exts, " ")
}

func languageLabel(lang string) string {
	if lang == "" || lang == "auto" {
		return "auto-detect"
	}
	return lang
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
