package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterParse(t *testing.T) {
	r := newRouter("/")

	cmd, err := r.Parse("  /Start@HikariBot  deep link  ")
	require.NoError(t, err)
	assert.Equal(t, "start", cmd.Name)
	assert.Equal(t, []string{"deep", "link"}, cmd.Args)

	_, err = r.Parse("hello")
	require.ErrorIs(t, err, ErrNotACommand)

	_, err = r.Parse("/   ")
	require.ErrorIs(t, err, ErrEmptyCommand)
}

func TestRouterRouteText(t *testing.T) {
	r := newRouter("/")
	r.command("menu", func(_ context.Context, _ *turn, _ Event, _ *Command) Reply { return Reply{Text: "menu"} })

	h, cmd, ok := r.routeText("/menu")
	require.True(t, ok)
	assert.Equal(t, "menu", cmd.Name)
	assert.Equal(t, "menu", h(context.Background(), nil, Event{}, cmd).Text)

	_, _, ok = r.routeText("/nope")
	assert.False(t, ok)
	_, _, ok = r.routeText("menu")
	assert.False(t, ok)
}

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"a@b.io":              true,
		"first.last@sub.d.co": true,
		"a@b":                 false,
		"a@b.c":               false,
		"a@b.c1":              false,
		"a b@c.de":            false,
		"":                    false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidEmail(in), in)
	}
}

func TestSplitDraft(t *testing.T) {
	s, b, ok := splitDraft("Subject\r\nline 1\r\nline 2\n")
	require.True(t, ok)
	assert.Equal(t, "Subject", s)
	assert.Equal(t, "line 1\nline 2", b)

	_, _, ok = splitDraft("one line")
	assert.False(t, ok)
	_, _, ok = splitDraft("Subject\n   ")
	assert.False(t, ok)
}

func TestMediaClassification(t *testing.T) {
	cases := []struct {
		md    Media
		name  string
		audio bool
		image bool
	}{
		{Media{Kind: MediaVoice, UniqueID: "u"}, "voice_u.ogg", true, false},
		{Media{Kind: MediaVideoNote, UniqueID: "u"}, "video_note_u.mp4", true, false},
		{Media{Kind: MediaAudio, Filename: "dir/song.M4A"}, "song.M4A", true, false},
		{Media{Kind: MediaDocument, Filename: "memo.wav"}, "memo.wav", true, false},
		{Media{Kind: MediaDocument, Filename: "scan.PNG"}, "scan.PNG", false, true},
		{Media{Kind: MediaDocument, Filename: "x.bin", MIME: "image/heic"}, "x.bin", false, true},
		{Media{Kind: MediaPhoto, FileID: "f"}, "screenshot_f.jpg", false, true},
		{Media{Kind: MediaSticker, UniqueID: "s"}, "file_s", false, false},
	}
	for _, tc := range cases {
		md := tc.md
		assert.Equal(t, tc.name, md.name(), md.Kind.String())
		assert.Equal(t, tc.audio, md.audioLike(), md.name())
		assert.Equal(t, tc.image, md.imageLike(), md.name())
	}
}

func TestStateInEmail(t *testing.T) {
	assert.True(t, EmailEnteringRecipient.InEmail())
	assert.True(t, EmailEnteringDraft.InEmail())
	assert.False(t, ChatActive.InEmail())
	assert.Equal(t, "state(42)", State(42).String())
}
