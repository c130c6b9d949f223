package client

import "fmt"

// loopStep selects one element under the lock and describes it. It reports
// false when the element went away since the loop started.
type loopStep func() (LoopEvent, bool)

// runLoop dispatches each live element in order, then one finished event
// with the selection from before the loop put back. Elements are snapshotted
// up front, so joins during the loop are not visited and departures are
// skipped.
func (s *Session) runLoop(done LoopEvent, steps []loopStep) {
	s.lock.Lock()
	prevCh, prevPeer := s.topo.Selection()
	s.lock.Unlock()

	for _, step := range steps {
		s.lock.Lock()
		ev, ok := step()
		s.lock.Unlock()
		if ok {
			s.handler.OnLoop(ev)
		}
	}

	s.lock.Lock()
	s.topo.Restore(prevCh, prevPeer)
	s.lock.Unlock()

	done.Finished = true
	s.handler.OnLoop(done)
}

// ForEachChannel loops over the joined channels, selecting each in turn.
// name tags every event of the loop and may be empty.
func (s *Session) ForEachChannel(name string) {
	s.lock.Lock()
	refs := s.topo.LiveChannels()
	s.lock.Unlock()

	steps := make([]loopStep, len(refs))
	for i, r := range refs {
		steps[i] = func() (LoopEvent, bool) {
			ch := s.topo.ResolveChannel(r)
			if ch == nil || ch.Closed() {
				return LoopEvent{}, false
			}
			s.topo.SelectChannel(ch)
			return LoopEvent{Kind: LoopChannels, Name: name, Channel: channelEvent(ch)}, true
		}
	}
	s.runLoop(LoopEvent{Kind: LoopChannels, Name: name}, steps)
}

// ForEachPeer loops over the live peers of the selected channel, selecting
// each in turn.
func (s *Session) ForEachPeer(name string) error {
	s.lock.Lock()
	ch, err := s.topo.SelectedChannel()
	if err != nil {
		s.lock.Unlock()
		return s.fail(selectionError(loopTitle("Loop Peers", name), err))
	}
	refs := s.topo.LivePeers(ch)
	chEv := channelEvent(ch)
	s.lock.Unlock()

	steps := make([]loopStep, len(refs))
	for i, r := range refs {
		steps[i] = func() (LoopEvent, bool) {
			p := s.topo.ResolvePeer(r)
			if p == nil || p.Closed() {
				return LoopEvent{}, false
			}
			s.topo.SelectPeer(p)
			return LoopEvent{Kind: LoopPeers, Name: name, Channel: chEv, Peer: peerEvent(p)}, true
		}
	}
	s.runLoop(LoopEvent{Kind: LoopPeers, Name: name, Channel: chEv}, steps)
	return nil
}

// ForEachListedChannel loops over the last channel list received. The
// selection is not touched.
func (s *Session) ForEachListedChannel(name string) {
	s.lock.Lock()
	listings := s.topo.Listings()
	s.lock.Unlock()

	steps := make([]loopStep, len(listings))
	for i, l := range listings {
		steps[i] = func() (LoopEvent, bool) {
			return LoopEvent{Kind: LoopListedChannels, Name: name, Listing: l}, true
		}
	}
	s.runLoop(LoopEvent{Kind: LoopListedChannels, Name: name}, steps)
}

func loopTitle(op, name string) string {
	if name == "" {
		return op
	}
	return fmt.Sprintf("%s %q", op, name)
}
