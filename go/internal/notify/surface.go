package notify

import (
	"github.com/rs/zerolog/log"
)

// Surface is anywhere a notice can be displayed. Implementations receive the
// full text to show and a later request to take it down again.
type Surface interface {
	Show(text string)
	Hide()
}

// LogSurface writes notices to the application log. It is the fallback
// surface when no interactive one is attached.
type LogSurface struct{}

func (LogSurface) Show(text string) {
	log.Info().Str("text", text).Msg("notice shown")
}

func (LogSurface) Hide() {
	log.Debug().Msg("notice hidden")
}

// MultiSurface fans a notice out to several surfaces at once.
type MultiSurface []Surface

func (m MultiSurface) Show(text string) {
	for _, s := range m {
		s.Show(text)
	}
}

func (m MultiSurface) Hide() {
	for _, s := range m {
		s.Hide()
	}
}
