package slideshow

import (
	"errors"
	"image"
	"io"

	"github.com/maauso/slideshow/internal/clip"
)

// slot queues the corrected frames of one clip. The next frame is decoded
// ahead so that emptiness is known before a tick is composed.
type slot struct {
	seq  *clip.Sequence
	head image.Image
}

// empty reports whether the slot has no frame left.
func (s *slot) empty() bool {
	return s.head == nil
}

// load puts seq in the slot. A sequence without frames leaves it empty.
func (s *slot) load(seq *clip.Sequence) error {
	s.seq = seq
	return s.advance()
}

// take returns the current frame and moves to the next one.
func (s *slot) take() (image.Image, error) {
	img := s.head
	if img == nil {
		return nil, nil
	}
	if err := s.advance(); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *slot) advance() error {
	s.head = nil
	if s.seq == nil {
		return nil
	}

	img, err := s.seq.Next()
	if errors.Is(err, io.EOF) {
		return s.release()
	}
	if err != nil {
		return err
	}
	s.head = img
	return nil
}

// release closes the current sequence.
func (s *slot) release() error {
	s.head = nil
	if s.seq == nil {
		return nil
	}
	err := s.seq.Close()
	s.seq = nil
	return err
}
