package voice

import (
	"github.com/danmuck/voicectl/internal/dispatch"
	"github.com/danmuck/voicectl/internal/protocol/osc"
)

const (
	MethodPlay = "play"
	// PlayTag carries pitch then velocity.
	PlayTag = ",ii"
)

// PlayMessage builds the inbound play command addressed to instrument.
func PlayMessage(instrument string, pitch, velocity int32) (*osc.Message, error) {
	return osc.NewMessage("/"+instrument+"/"+MethodPlay, osc.Int32(pitch), osc.Int32(velocity))
}

func playRoute(play func(pitch, velocity int32)) dispatch.Route {
	return dispatch.Route{
		Method:  MethodPlay,
		TypeTag: PlayTag,
		Handle: func(msg *osc.Message) error {
			pitch, err := msg.Int32At(0)
			if err != nil {
				return err
			}
			velocity, err := msg.Int32At(4)
			if err != nil {
				return err
			}
			play(pitch, velocity)
			return nil
		},
	}
}
