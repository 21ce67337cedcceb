package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamedex/pkg/models"
)

func TestIdentifyHost(t *testing.T) {
	tests := []struct {
		href string
		want models.Host
	}{
		{"https://akirabox.com/file/abc", models.HostAkira},
		{"https://vikingfile.com/f/abc", models.HostViking},
		{"https://1fichier.com/?abc", models.HostOneFichier},
		{"https://letsupload.io/abc", models.HostLetsUpload},
		{"https://www.MEDIAFIRE.com/file/abc", models.HostMediafire},
		{"https://gofile.io/d/abc", models.HostGofile},
		{"https://rootz.example/abc", models.HostRootz},
		{"https://viki.example/abc", models.HostViki},
		// vikingfile rule fires before the bare viki check
		{"https://vikingfile.com/viki-path", models.HostViking},
		{"https://mega.nz/file/abc", models.HostUnknown},
		{"", models.HostUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.href, func(t *testing.T) {
			assert.Equal(t, tc.want, IdentifyHost(tc.href))
		})
	}
}

func TestClassify_UnknownHostRejected(t *testing.T) {
	_, ok := Classify(LinkContext{Href: "https://mega.nz/file/abc"}, PageContext{})
	assert.False(t, ok)
}

func TestClassify_VikingBackport(t *testing.T) {
	// The pre-pass over content anchors turns "Backport for FW 4.xx"
	// preceding text into the per-href firmware hint consumed here.
	link := LinkContext{
		Href:          "https://vikingfile.com/abc",
		Text:          "Download",
		PrecedingText: "Backport for FW 4.xx",
	}
	page := PageContext{
		LinkFirmware: map[string]string{"https://vikingfile.com/abc": "4.xx"},
	}

	got, ok := Classify(link, page)
	require.True(t, ok)
	assert.Equal(t, models.HostViking, got.Host)
	assert.Equal(t, models.LinkTypeBackport, got.Type)
	assert.Equal(t, "4.xx", got.ExtractedFirmware)
}

func TestClassify_PrePassHintBeatsKeywordInference(t *testing.T) {
	link := LinkContext{
		Href: "https://akirabox.com/abc",
		Text: "Download Link", // no keyword on the anchor itself
	}
	page := PageContext{
		LinkTypes:    map[string]models.LinkType{"https://akirabox.com/abc": models.LinkTypeUpdate},
		LinkFirmware: map[string]string{},
	}

	got, ok := Classify(link, page)
	require.True(t, ok)
	assert.Equal(t, models.LinkTypeUpdate, got.Type)
}

func TestClassify_VersionFallsBackToGlobal(t *testing.T) {
	link := LinkContext{Href: "https://akirabox.com/abc", Text: "Download Link"}
	page := PageContext{GlobalVersion: "1.009"}

	got, ok := Classify(link, page)
	require.True(t, ok)
	assert.Equal(t, "1.009", got.ExtractedVersion)
}

func TestClassify_HrefVersionBeatsGlobal(t *testing.T) {
	link := LinkContext{Href: "https://akirabox.com/game-v1.005.zip", Text: "Download Link"}
	page := PageContext{GlobalVersion: "1.009"}

	got, ok := Classify(link, page)
	require.True(t, ok)
	assert.Equal(t, "1.005", got.ExtractedVersion)
}

func TestClassify_DisplayStringPreference(t *testing.T) {
	t.Run("context text wins", func(t *testing.T) {
		got, ok := Classify(LinkContext{
			Href:        "https://akirabox.com/abc",
			Text:        "akirabox",
			ContextText: "Game v1.005 (EUR)",
		}, PageContext{})
		require.True(t, ok)
		assert.Equal(t, "Game v1.005 (EUR)", got.Version)
	})

	t.Run("anchor text second", func(t *testing.T) {
		got, ok := Classify(LinkContext{Href: "https://akirabox.com/abc", Text: "akirabox mirror"}, PageContext{})
		require.True(t, ok)
		assert.Equal(t, "akirabox mirror", got.Version)
	})

	t.Run("generic label last", func(t *testing.T) {
		got, ok := Classify(LinkContext{Href: "https://akirabox.com/abc"}, PageContext{})
		require.True(t, ok)
		assert.Equal(t, "Download Link", got.Version)
	})
}

func TestClassify_FixLinkFirmwareFromURL(t *testing.T) {
	link := LinkContext{
		Href:        "https://akirabox.com/fix_4.50.rar",
		Text:        "Crack fix",
		ContextText: "Crack fix",
	}

	got, ok := Classify(link, PageContext{})
	require.True(t, ok)
	assert.Equal(t, models.LinkTypeFix, got.Type)
	assert.Equal(t, "4.50", got.ExtractedFirmware)
	assert.Empty(t, got.ExtractedVersion)
}

func TestClassify_FirmwareShapedVersionReinterpreted(t *testing.T) {
	// A backport link with no numeric evidence of its own inherits the
	// page-global version; when that value is firmware-shaped it was a
	// mis-capture and moves to the firmware field.
	link := LinkContext{
		Href: "https://vikingfile.com/abc",
		Text: "Backport",
	}
	page := PageContext{GlobalVersion: "4.050"}

	got, ok := Classify(link, page)
	require.True(t, ok)
	assert.Equal(t, models.LinkTypeBackport, got.Type)
	assert.Equal(t, "4.050", got.ExtractedFirmware)
	assert.Empty(t, got.ExtractedVersion)
}

func TestClassify_GameLinkFirmwareOverriddenByGlobal(t *testing.T) {
	link := LinkContext{
		Href: "https://akirabox.com/game-bp9.zip", // URL noise suggesting FW 9
		Text: "Download Link",
	}
	page := PageContext{GlobalFirmware: "5.xx"}

	got, ok := Classify(link, page)
	require.True(t, ok)
	assert.Equal(t, models.LinkTypeGame, got.Type)
	assert.Equal(t, "5.xx", got.ExtractedFirmware, "page-global firmware wins on game links")
}

func TestClassify_Deterministic(t *testing.T) {
	link := LinkContext{
		Href:          "https://vikingfile.com/abc",
		Text:          "Backport",
		PrecedingText: "Backport for FW 4.xx",
		SectionText:   "Backport section v1.002",
	}
	page := PageContext{GlobalVersion: "1.002", GlobalFirmware: "5.xx"}

	first, ok1 := Classify(link, page)
	second, ok2 := Classify(link, page)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}
