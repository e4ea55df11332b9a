package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"example.com/vdifgate/internal/common"
	"example.com/vdifgate/internal/recorder"
)

type logConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type config struct {
	Listen     string    `yaml:"listen"`     // UDP address frames arrive on
	StatusAddr string    `yaml:"statusAddr"` // HTTP status API address
	OutDir     string    `yaml:"outDir"`
	Stem       string    `yaml:"stem"`
	ProcessLog string    `yaml:"processLog"`
	Logs       logConfig `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Listen == "" {
		cfg.Listen = ":7890"
	}
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = ":8080"
	}
	if cfg.OutDir == "" {
		cfg.OutDir = filepath.Join(".", "data")
	}
	if cfg.Stem == "" {
		cfg.Stem = "live"
	}
	if cfg.ProcessLog == "" {
		cfg.ProcessLog = filepath.Join(cfg.OutDir, "process.jsonl")
	}
	if cfg.Logs.Directory == "" {
		cfg.Logs.Directory = filepath.Join(cfg.OutDir, "logs")
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	return cfg, nil
}

func setupLogging(cfg config) error {
	if err := os.MkdirAll(cfg.Logs.Directory, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Logs.Directory, "vdifd.log"),
		MaxSize:    cfg.Logs.MaxSizeMB,
		MaxAge:     cfg.Logs.MaxAgeDays,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   cfg.Logs.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(mw)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	common.SetOutput(mw)
	return nil
}

func main() {
	configPath := flag.String("config", "config/vdifd.yaml", "path to configuration file")
	listenFlag := flag.String("listen", "", "UDP listen address (overrides config)")
	statusFlag := flag.String("status-addr", "", "status API address (overrides config)")
	readTimeout := flag.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := flag.Duration("write-timeout", 10*time.Second, "HTTP write timeout")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *listenFlag != "" {
		cfg.Listen = *listenFlag
	}
	if *statusFlag != "" {
		cfg.StatusAddr = *statusFlag
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		log.Fatalf("output dir: %v", err)
	}
	if err := setupLogging(cfg); err != nil {
		log.Fatalf("setup logging: %v", err)
	}

	rec, err := recorder.New(recorder.Options{
		ListenAddr: cfg.Listen,
		OutDir:     cfg.OutDir,
		Stem:       cfg.Stem,
	})
	if err != nil {
		log.Fatalf("recorder init: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- rec.Run() }()

	httpServer := &http.Server{
		Addr:         cfg.StatusAddr,
		Handler:      recorder.NewRouter(rec),
		ReadTimeout:  *readTimeout,
		WriteTimeout: *writeTimeout,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("status listen: %v", err)
		}
	}()

	log.Printf("vdifd receiving on %s, status API on %s, writing to %s", rec.Addr(), cfg.StatusAddr, cfg.OutDir)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-shutdown:
		log.Println("shutting down")
		rec.Shutdown()
		if err := <-runErr; err != nil {
			log.Printf("receive loop: %v", err)
		}
	case err := <-runErr:
		if err != nil {
			log.Printf("receive loop: %v", err)
		}
		rec.Shutdown()
	}

	if err := rec.CloseFiles(); err != nil {
		log.Printf("close thread files: %v", err)
	}

	status := rec.Status()
	if cfg.ProcessLog != "" {
		var outputs []string
		for _, t := range rec.Threads() {
			outputs = append(outputs, filepath.Join(cfg.OutDir, t.File))
		}
		entry := common.ProcessEntry{
			Op:      "record",
			Input:   cfg.Listen,
			Outputs: outputs,
			Frames:  status.Frames,
			Bytes:   status.Bytes,
			Skipped: status.Malformed,
			Detail:  fmt.Sprintf("datagrams=%d invalid=%d", status.Datagrams, status.Invalid),
		}
		if err := common.NewProcessLog(cfg.ProcessLog).Append(entry); err != nil {
			log.Printf("process log: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Printf("vdifd stopped: %d frames (%s) on %d threads", status.Frames, common.FormatBytes(status.Bytes), status.Threads)
}
