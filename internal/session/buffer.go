package session

// drainOfflineBuffer replays every buffered publish in FIFO append order
// (spec.md §4.6), clearing the buffer regardless of individual outcomes,
// and returns one ResendReport per entry for the MESSAGE_RESEND event.
func (m *Manager) drainOfflineBuffer() []ResendReport {
	m.mu.Lock()
	entries := m.offlineBuffer
	m.offlineBuffer = nil
	m.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	reports := make([]ResendReport, 0, len(entries))
	for _, e := range entries {
		sent, _ := m.Publish(e.topic, e.message)
		reports = append(reports, ResendReport{Topic: e.topic, Message: e.message, Resent: sent})
	}
	if m.metrics != nil {
		m.metrics.MessagesResentTotal.Add(float64(len(reports)))
	}
	return reports
}

// clearOfflineBuffer discards buffered publishes without replay, for the
// terminal RECONN_FAIL transition (spec.md §4.6).
func (m *Manager) clearOfflineBuffer() {
	m.mu.Lock()
	m.offlineBuffer = nil
	m.mu.Unlock()
}

func (m *Manager) bufferOffline(topic string, message []byte) {
	m.mu.Lock()
	m.offlineBuffer = append(m.offlineBuffer, offlineEntry{topic: topic, message: message})
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.OfflineBuffered.Inc()
	}
}
