package mq

// processPublishQueue dispatches queued QoS 1/2 publishes as MaxInFlight
// headroom frees up. With no limit configured (MaxInFlight == 0) requests are
// dispatched immediately, this queue stays empty, and the call does nothing.
func (c *Client) processPublishQueue() {
	for len(c.publishQueue) > 0 && c.inFlightCount < c.opts.MaxInFlight {
		req := c.publishQueue[0]
		c.publishQueue = c.publishQueue[1:]
		c.dispatchPublish(req)
	}
}
