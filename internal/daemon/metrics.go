package daemon

import (
	"sync"
)

type LogDaemonMetrics struct {
	FilesDiscovered int
	FilesTailing    int
	FilesFailed     int
	LinesShipped    int
	mu              sync.RWMutex
}

func (m *LogDaemonMetrics) IncFilesDiscovered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesDiscovered++
}

func (m *LogDaemonMetrics) IncFilesTailing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesTailing++
}

func (m *LogDaemonMetrics) DecFilesTailing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesTailing--
}

func (m *LogDaemonMetrics) IncFilesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilesFailed++
}

func (m *LogDaemonMetrics) IncLinesShipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinesShipped++
}

func (m *LogDaemonMetrics) GetMetricsStamp() LogDaemonMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LogDaemonMetrics{
		FilesDiscovered: m.FilesDiscovered,
		FilesTailing:    m.FilesTailing,
		FilesFailed:     m.FilesFailed,
		LinesShipped:    m.LinesShipped,
	}
}
