// Package render drives the per-frame loop over F frame slots.
//
// Scheduler holds the loop's state machine and knows nothing about Vulkan.
// Renderer is the Vulkan implementation of the Backend it drives.
package render

import (
	"github.com/cockroachdb/errors"
)

// Status is the outcome of acquiring or presenting a swapchain image.
type Status int

const (
	StatusOK Status = iota
	// StatusSuboptimal still rendered, but the swapchain should be rebuilt.
	StatusSuboptimal
	// StatusOutOfDate means the swapchain can no longer be used.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// Backend performs the GPU side of each scheduler step.
type Backend interface {
	// WaitSlot blocks until the slot's previous submission has completed.
	WaitSlot(slot int) error
	// Acquire signals the slot's image-available semaphore once image is ready.
	Acquire(slot int) (image int, status Status, err error)
	ResetSlot(slot int) error
	// Record writes per-frame data into the slot and re-records its command
	// buffer against image.
	Record(slot, image int, dt float64) error
	Submit(slot, image int) error
	Present(slot, image int) (Status, error)
	// Rebuild recreates the swapchain and everything sized by it. It returns
	// false when the window closed while waiting for a drawable size.
	Rebuild() (bool, error)
}

type Scheduler struct {
	backend Backend
	frames  int
	slot    int
	resized bool
}

func NewScheduler(backend Backend, framesInFlight int) *Scheduler {
	return &Scheduler{backend: backend, frames: framesInFlight}
}

// Slot is the index of the frame slot the next Frame call uses.
func (s *Scheduler) Slot() int { return s.slot }

// RequestResize makes the next present rebuild the swapchain.
func (s *Scheduler) RequestResize() { s.resized = true }

// Frame runs one iteration of wait, acquire, record, submit and present.
func (s *Scheduler) Frame(dt float64) error {
	slot := s.slot

	if err := s.backend.WaitSlot(slot); err != nil {
		return errors.Wrap(err, "wait for frame slot")
	}

	image, status, err := s.backend.Acquire(slot)
	if err != nil {
		return errors.Wrap(err, "acquire swapchain image")
	}
	if status == StatusOutOfDate {
		// Nothing was submitted, so the slot is reused next frame.
		return s.rebuild()
	}
	rebuildAfterPresent := status == StatusSuboptimal

	if err := s.backend.ResetSlot(slot); err != nil {
		return errors.Wrap(err, "reset frame slot")
	}
	if err := s.backend.Record(slot, image, dt); err != nil {
		return errors.Wrap(err, "record frame")
	}
	if err := s.backend.Submit(slot, image); err != nil {
		return errors.Wrap(err, "submit frame")
	}

	status, err = s.backend.Present(slot, image)
	if err != nil {
		return errors.Wrap(err, "present frame")
	}

	s.slot = (slot + 1) % s.frames

	if status != StatusOK || rebuildAfterPresent || s.resized {
		return s.rebuild()
	}
	return nil
}

func (s *Scheduler) rebuild() error {
	s.resized = false
	if _, err := s.backend.Rebuild(); err != nil {
		return errors.Wrap(err, "rebuild swapchain")
	}
	return nil
}
