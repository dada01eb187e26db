package actions

import "go.uber.org/zap"

// InputEvent is a DOM-style event dispatched on the composer input.
type InputEvent struct {
	Type string // "input" or "keydown"
	Key  string // set for keydown
}

// Input is the surface's text composer.
type Input interface {
	SetValue(v string)
	Dispatch(ev InputEvent)
}

// Surface is the rendered chat surface.
type Surface interface {
	// ActiveInput returns the composer that currently accepts text.
	ActiveInput() (Input, bool)
}

// SendFunc submits text as if the user typed it.
type SendFunc func(text string)

// SendMessage returns a SendFunc that fills the active input and submits it
// with an input event followed by an Enter keydown.
func SendMessage(s Surface, log *zap.Logger) SendFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(text string) {
		in, ok := s.ActiveInput()
		if !ok {
			log.Warn("no active chat input; message dropped")
			return
		}
		in.SetValue(text)
		in.Dispatch(InputEvent{Type: "input"})
		in.Dispatch(InputEvent{Type: "keydown", Key: "Enter"})
	}
}
