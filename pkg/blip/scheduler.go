package blip

// sendPass performs one round-robin pass over the outbound queue: every
// urgent message gets a frame sent before any non-urgent message does,
// preserving relative order within each group, and a message whose
// unacked bytes already fill the flow-control window is skipped for this
// pass rather than blocking the others behind it. It reports whether any
// frame was actually sent.
func (c *Connection) sendPass() (sent bool, err error) {
	pass := c.buildPass()
	for _, m := range pass {
		if m.enc != nil && m.enc.bytesInFlight() >= c.opts.AckWindow {
			continue
		}
		frame, err := m.nextFrame(c.opts.MaxFrameSize)
		if err != nil {
			return sent, err
		}
		if frame == nil {
			c.removeFromQueue(m)
			continue
		}
		if err := c.transport.Send(frame); err != nil {
			return sent, err
		}
		sent = true
	}
	return sent, nil
}

// buildPass snapshots the current outQueue as urgent messages followed by
// non-urgent ones, each group in FIFO order.
func (c *Connection) buildPass() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outQueue) == 0 {
		return nil
	}
	pass := make([]*Message, 0, len(c.outQueue))
	for _, m := range c.outQueue {
		if m.Urgent() {
			pass = append(pass, m)
		}
	}
	for _, m := range c.outQueue {
		if !m.Urgent() {
			pass = append(pass, m)
		}
	}
	return pass
}

// removeFromQueue drops a fully-sent message from outQueue.
func (c *Connection) removeFromQueue(m *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.outQueue {
		if q == m {
			c.outQueue = append(c.outQueue[:i], c.outQueue[i+1:]...)
			return
		}
	}
}
