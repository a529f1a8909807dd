package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// ConnectionOpened is a no-op.
func (n *NoopCollector) ConnectionOpened() {}

// ConnectionClosed is a no-op.
func (n *NoopCollector) ConnectionClosed() {}

// CommandProcessed is a no-op.
func (n *NoopCollector) CommandProcessed(command string) {}

// CommandRejected is a no-op.
func (n *NoopCollector) CommandRejected(command string, reason string) {}

// MessageReceived is a no-op.
func (n *NoopCollector) MessageReceived(senderDomain string, sizeBytes int64) {}

// BodyTruncated is a no-op.
func (n *NoopCollector) BodyTruncated() {}

// DeliveryCompleted is a no-op.
func (n *NoopCollector) DeliveryCompleted(result string) {}
