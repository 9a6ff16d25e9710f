package voice

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2"
)

// Actuator drives one bank of note outputs.
type Actuator interface {
	Play(pitch, velocity int32)
	// Sync pushes internal state out to the hardware. elapsed is the time
	// since the previous Sync.
	Sync(elapsed time.Duration)
	// Reset drives every output to its idle state.
	Reset()
}

const (
	DefaultSplitLow  = 48
	DefaultSplitHigh = 60

	BoardLeft  = "left"
	BoardRight = "right"
)

// Split routes pitches below Low to Left, pitches below High to Right, and
// skips the rest. Negative pitches are skipped.
type Split struct {
	Low   int32
	High  int32
	Left  Actuator
	Right Actuator
}

func NewSplit(left, right Actuator) *Split {
	return &Split{Low: DefaultSplitLow, High: DefaultSplitHigh, Left: left, Right: right}
}

// Route names the board pitch belongs to. ok is false for skipped pitches.
func (s *Split) Route(pitch int32) (name string, board Actuator, ok bool) {
	switch {
	case pitch < 0:
		return "", nil, false
	case pitch < s.Low:
		return BoardLeft, s.Left, true
	case pitch < s.High:
		return BoardRight, s.Right, true
	default:
		return "", nil, false
	}
}

func (s *Split) Play(pitch, velocity int32) {
	s.Deliver(pitch, velocity)
}

// Deliver plays pitch on its board and names the board that took it.
func (s *Split) Deliver(pitch, velocity int32) (board string, ok bool) {
	name, target, ok := s.Route(pitch)
	if !ok {
		log.Debug().Int32("pitch", pitch).Msg("voice.Split skipped pitch outside range")
		return "", false
	}
	target.Play(pitch, velocity)
	return name, true
}

func (s *Split) Sync(elapsed time.Duration) {
	s.Left.Sync(elapsed)
	s.Right.Sync(elapsed)
}

func (s *Split) Reset() {
	s.Left.Reset()
	s.Right.Reset()
}

// LogBoard stands in for driver hardware by logging each note as the MIDI
// note-on it would correspond to.
type LogBoard struct {
	Name    string
	Channel uint8

	mu     sync.Mutex
	played uint64
	synced time.Duration
}

func NewLogBoard(name string, channel uint8) *LogBoard {
	return &LogBoard{Name: name, Channel: channel}
}

func (b *LogBoard) Play(pitch, velocity int32) {
	key, vel := clamp7(pitch), clamp7(velocity)
	msg := midi.NoteOn(b.Channel, key, vel)

	b.mu.Lock()
	b.played++
	b.mu.Unlock()

	log.Info().
		Str("board", b.Name).
		Str("note", midi.Note(key).String()).
		Int32("pitch", pitch).
		Int32("velocity", velocity).
		Str("midi", msg.String()).
		Msg("voice.LogBoard play")
}

func (b *LogBoard) Sync(elapsed time.Duration) {
	b.mu.Lock()
	b.synced += elapsed
	b.mu.Unlock()
}

func (b *LogBoard) Reset() {
	b.mu.Lock()
	b.played = 0
	b.synced = 0
	b.mu.Unlock()
	log.Debug().Str("board", b.Name).Msg("voice.LogBoard reset")
}

// Stats reports notes played and total synced time since the last Reset.
func (b *LogBoard) Stats() (played uint64, synced time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.played, b.synced
}

func clamp7(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}
