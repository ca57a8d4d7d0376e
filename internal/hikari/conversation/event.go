package conversation

import (
	"context"
	"path"
	"strings"
)

// MediaKind classifies inbound media.
type MediaKind int

const (
	MediaOther MediaKind = iota
	MediaVoice
	MediaAudio
	MediaVideoNote
	MediaVideo
	MediaDocument
	MediaPhoto
	MediaSticker
)

func (k MediaKind) String() string {
	switch k {
	case MediaVoice:
		return "voice"
	case MediaAudio:
		return "audio"
	case MediaVideoNote:
		return "video_note"
	case MediaVideo:
		return "video"
	case MediaDocument:
		return "document"
	case MediaPhoto:
		return "photo"
	case MediaSticker:
		return "sticker"
	default:
		return "other"
	}
}

// Media is an inbound file. Content is fetched lazily with Download so
// handlers that reject the media never transfer it.
type Media struct {
	Kind     MediaKind
	FileID   string
	UniqueID string
	Filename string
	MIME     string
	Size     int64
	Caption  string

	Download func(ctx context.Context) ([]byte, error)
}

// audioExtensions are the containers the transcription service accepts.
var audioExtensions = map[string]bool{
	".mp3": true, ".mp4": true, ".mpeg": true, ".mpga": true,
	".m4a": true, ".wav": true, ".webm": true, ".ogg": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

func (md *Media) ext() string {
	return strings.ToLower(path.Ext(md.Filename))
}

// name returns the file name used for email attachments and uploads.
func (md *Media) name() string {
	if md.Filename != "" {
		return path.Base(md.Filename)
	}
	id := md.UniqueID
	if id == "" {
		id = md.FileID
	}
	switch md.Kind {
	case MediaVoice:
		return "voice_" + id + ".ogg"
	case MediaVideoNote:
		return "video_note_" + id + ".mp4"
	case MediaAudio:
		return "audio_" + id + ".mp3"
	case MediaPhoto:
		return "screenshot_" + id + ".jpg"
	case MediaVideo:
		return "video_" + id + ".mp4"
	default:
		return "file_" + id
	}
}

// audioLike reports whether the media can be transcribed.
func (md *Media) audioLike() bool {
	switch md.Kind {
	case MediaVoice, MediaAudio, MediaVideoNote:
		return true
	case MediaDocument:
		return strings.HasPrefix(md.MIME, "audio/") || audioExtensions[md.ext()]
	}
	return false
}

// imageLike reports whether the media can be sent to the vision model.
func (md *Media) imageLike() bool {
	switch md.Kind {
	case MediaPhoto:
		return true
	case MediaDocument:
		return strings.HasPrefix(md.MIME, "image/") || imageExtensions[md.ext()]
	}
	return false
}

// Event is one inbound interaction. Exactly one of Callback, Media or Text
// is meaningful, checked in that order.
type Event struct {
	User     UserID
	Chat     string
	Text     string
	Callback string
	Media    *Media
}

type progressKey struct{}

// ProgressFunc shows an interim status, such as a "thinking" placeholder,
// while a slow step runs. The final Reply replaces it.
type ProgressFunc func(text string)

// WithProgress attaches fn to ctx.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress calls the ProgressFunc carried by ctx, if any.
func ReportProgress(ctx context.Context, text string) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(text)
	}
}
