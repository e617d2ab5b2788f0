package proccontrol

// Handle is the per-task control surface a worker actor hands to a media
// tool adapter (spec §4.4, closing paragraph): the worker forwards
// Pause/Resume/Cancel task-control messages here, and the adapter in turn
// feeds them to Run as Suspend/Resume/Quit.
type Handle struct {
	ch chan ControlMsg
}

// NewHandle creates a Handle whose channel buffers up to four messages; a
// further send blocks until the adapter's Run drains the channel.
func NewHandle() *Handle {
	return &Handle{ch: make(chan ControlMsg, 4)}
}

// Chan exposes the receive side for Run.
func (h *Handle) Chan() <-chan ControlMsg { return h.ch }

// Pause forwards a task-control Pause as a process Suspend.
func (h *Handle) Pause() { h.ch <- Suspend }

// Resume forwards a task-control Resume as a process Resume.
func (h *Handle) Resume() { h.ch <- Resume }

// Cancel forwards a task-control Cancel as a process Quit (which escalates
// to Kill only if the caller sends Kill explicitly after observing no
// termination — the uniform cancellation path uses Quit first, per spec §5).
func (h *Handle) Cancel() { h.ch <- Quit }

// Kill forwards an unconditional Kill (sent by actor.Kill). Nothing sends it
// automatically after a Quit.
func (h *Handle) Kill() { h.ch <- Kill }

// Close releases the handle's channel once the task is done.
func (h *Handle) Close() { close(h.ch) }
