package daemon

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
)

// LogDaemonService discovers log files under a root directory and ships
// every new line through the shipper logger.
type LogDaemonService struct {
	config        Config
	shipper       *slog.Logger
	tailersWg     sync.WaitGroup
	subServicesWg sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	metrics       *LogDaemonMetrics

	filesMutex sync.Mutex
	tailing    map[string]struct{}
	seenFiles  map[string]struct{}
}

type Config struct {
	LogRootPath     string
	FileSuffix      string // default: ".log"
	ScanInterval    time.Duration
	MaxOpenFiles    int
	NodeName        string
	FromStart       bool // ship content present at first discovery, not only new lines
	Poll            bool
	FileIdleTimeout time.Duration // if > 0, stop tailing a file after this period without new lines
	ReportInterval  time.Duration
}

func NewLogDaemonService(ctx context.Context, config Config, shipper *slog.Logger) *LogDaemonService {
	nCtx, cancel := context.WithCancel(ctx)

	if config.FileSuffix == "" {
		config.FileSuffix = ".log"
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = 30 * time.Second
	}

	return &LogDaemonService{
		config:    config,
		shipper:   shipper,
		ctx:       nCtx,
		cancel:    cancel,
		metrics:   &LogDaemonMetrics{},
		tailing:   make(map[string]struct{}),
		seenFiles: make(map[string]struct{}),
	}
}

func (s *LogDaemonService) Start() {
	log.Printf("Starting log daemon service: root=%s, scan interval=%s, max open files=%d",
		s.config.LogRootPath, s.config.ScanInterval, s.config.MaxOpenFiles)

	s.scanFiles()

	s.subServicesWg.Add(1)
	go s.scanner()

	s.subServicesWg.Add(1)
	go s.metricsReporter()

	log.Println("Log daemon service started")
}

func (s *LogDaemonService) Stop() {
	log.Println("Stopping log daemon service...")
	s.cancel()

	s.subServicesWg.Wait()
	s.tailersWg.Wait()

	log.Println("Log daemon service stopped")
}

func (s *LogDaemonService) Metrics() LogDaemonMetrics {
	return s.metrics.GetMetricsStamp()
}

func (s *LogDaemonService) scanner() {
	defer s.subServicesWg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scanFiles()

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LogDaemonService) scanFiles() {
	files, err := s.discoverLogFiles()
	if err != nil {
		log.Printf("Error discovering log files: %v", err)
		return
	}

	for _, file := range files {
		if s.ctx.Err() != nil {
			return
		}
		s.startTailing(file)
	}
}

// startTailing launches a tailer for file unless one is already running or
// the open file limit is reached.
func (s *LogDaemonService) startTailing(file string) {
	s.filesMutex.Lock()
	defer s.filesMutex.Unlock()

	if _, ok := s.tailing[file]; ok {
		return
	}
	if s.config.MaxOpenFiles > 0 && len(s.tailing) >= s.config.MaxOpenFiles {
		log.Printf("Open file limit reached (%d/%d), skipping %s",
			len(s.tailing), s.config.MaxOpenFiles, file)
		return
	}

	_, seen := s.seenFiles[file]
	if !seen {
		s.seenFiles[file] = struct{}{}
		s.metrics.IncFilesDiscovered()
	}
	s.tailing[file] = struct{}{}
	s.metrics.IncFilesTailing()

	s.tailersWg.Add(1)
	go s.tailFile(file, s.config.FromStart && !seen)
}

func (s *LogDaemonService) stopTailing(file string) {
	s.filesMutex.Lock()
	defer s.filesMutex.Unlock()

	delete(s.tailing, file)
	s.metrics.DecFilesTailing()
}

func (s *LogDaemonService) tailFile(filePath string, fromStart bool) {
	defer s.tailersWg.Done()
	defer s.stopTailing(filePath)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Tailing panicked for %s: %v", filePath, r)
			s.metrics.IncFilesFailed()
		}
	}()

	location := &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	if fromStart {
		location = nil
	}

	t, err := tail.TailFile(filePath, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     s.config.Poll,
		Location: location,
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		log.Printf("Failed to tail file %s: %v", filePath, err)
		s.metrics.IncFilesFailed()
		return
	}
	defer func() {
		// Stop would wait on a tailer blocked sending to Lines; kill and drain instead
		t.Kill(nil)
		go func() {
			for range t.Lines {
			}
		}()
		t.Cleanup()
	}()

	checkTicker := time.NewTicker(1 * time.Second)
	defer checkTicker.Stop()

	lastActivity := time.Now()
	attrs := s.fileAttrs(filePath)

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			if line == nil {
				continue
			}
			if line.Err != nil {
				log.Printf("Error reading from %s: %v", filePath, line.Err)
				continue
			}

			s.shipper.LogAttrs(s.ctx, slog.LevelInfo, line.Text, attrs...)
			s.metrics.IncLinesShipped()
			lastActivity = time.Now()

		case <-checkTicker.C:
			// waking up from blocking line reading to check context status and idle timeout
			if s.config.FileIdleTimeout > 0 && time.Since(lastActivity) > s.config.FileIdleTimeout {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LogDaemonService) metricsReporter() {
	defer s.subServicesWg.Done()

	ticker := time.NewTicker(s.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics := s.metrics.GetMetricsStamp()
			log.Printf("Metrics: files tailing=%d, discovered=%d, failed=%d, lines shipped=%d",
				metrics.FilesTailing, metrics.FilesDiscovered, metrics.FilesFailed, metrics.LinesShipped)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LogDaemonService) discoverLogFiles() ([]string, error) {
	var logFiles []string

	err := filepath.Walk(s.config.LogRootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("Error accessing path %s: %v", path, err)
			return nil
		}

		if !info.IsDir() && strings.HasSuffix(info.Name(), s.config.FileSuffix) {
			logFiles = append(logFiles, path)
		}
		return nil
	})

	return logFiles, err
}

func (s *LogDaemonService) fileAttrs(filePath string) []slog.Attr {
	attrs := []slog.Attr{slog.String("file", filepath.Base(filePath))}
	if rel, err := filepath.Rel(s.config.LogRootPath, filePath); err == nil && rel != filepath.Base(filePath) {
		attrs = append(attrs, slog.String("source", filepath.ToSlash(filepath.Dir(rel))))
	}
	if s.config.NodeName != "" {
		attrs = append(attrs, slog.String("node", s.config.NodeName))
	}
	return attrs
}
