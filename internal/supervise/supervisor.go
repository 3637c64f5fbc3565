package supervise

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSpec describes one scraper process the supervisor keeps alive.
// Marker must appear in the process command line and be unique among the
// supervised set.
type ProcessSpec struct {
	Name   string
	Marker string
	Cmd    string
	Args   []string
}

type Config struct {
	PollInterval    time.Duration
	CleanupInterval time.Duration
	ErrorSleep      time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    time.Minute,
		CleanupInterval: time.Hour,
		ErrorSleep:      5 * time.Minute,
	}
}

// Supervisor polls the process table and respawns any supervised process
// that died. It also reclaims browser processes whose parent scraper is
// gone; a leaked headless Chrome holds hundreds of megabytes.
type Supervisor struct {
	specs []ProcessSpec
	cfg   Config
	log   zerolog.Logger

	listProcs func() ([]procInfo, error)
	spawn     func(spec ProcessSpec) error
	killPID   func(pid int32) error
}

type procInfo struct {
	PID     int32
	PPID    int32
	Name    string
	Cmdline string
}

func New(specs []ProcessSpec, cfg Config, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		specs:     specs,
		cfg:       cfg,
		log:       log,
		listProcs: listProcesses,
		spawn:     spawnDetached,
		killPID:   killProcess,
	}
}

// Run supervises until ctx is cancelled. Missing processes are spawned
// immediately on startup; after that the table is polled on
// PollInterval and orphaned browsers reaped on CleanupInterval.
func (s *Supervisor) Run(ctx context.Context) {
	s.ensureAll()

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			s.ensureAll()
		case <-cleanup.C:
			s.reapOrphanBrowsers()
		}
	}
}

// ensureAll spawns every supervised process not found in the process
// table. A failed scan sleeps ErrorSleep instead of hammering procfs.
func (s *Supervisor) ensureAll() {
	procs, err := s.listProcs()
	if err != nil {
		s.log.Error().Err(err).Dur("sleep", s.cfg.ErrorSleep).Msg("process scan failed")
		time.Sleep(s.cfg.ErrorSleep)
		return
	}

	for _, spec := range s.specs {
		if findByMarker(procs, spec.Marker) {
			continue
		}
		s.log.Warn().Str("process", spec.Name).Msg("process not running, spawning")
		if err := s.spawn(spec); err != nil {
			s.log.Error().Err(err).Str("process", spec.Name).Msg("spawn failed")
			continue
		}
		s.log.Info().Str("process", spec.Name).Msg("process spawned")
	}
}

// reapOrphanBrowsers kills chromium processes that were reparented to
// init, which is what a browser looks like after its scraper died
// without cleanup.
func (s *Supervisor) reapOrphanBrowsers() {
	procs, err := s.listProcs()
	if err != nil {
		s.log.Error().Err(err).Msg("orphan scan failed")
		return
	}

	reaped := 0
	for _, p := range procs {
		if !isBrowserProcess(p.Name) || p.PPID != 1 {
			continue
		}
		if err := s.killPID(p.PID); err != nil {
			s.log.Debug().Err(err).Int32("pid", p.PID).Msg("orphan kill failed")
			continue
		}
		reaped++
	}
	if reaped > 0 {
		s.log.Info().Int("reaped", reaped).Msg("orphaned browser processes reclaimed")
	}
}

func findByMarker(procs []procInfo, marker string) bool {
	for _, p := range procs {
		if strings.Contains(p.Cmdline, marker) {
			return true
		}
	}
	return false
}

func isBrowserProcess(name string) bool {
	switch {
	case strings.HasPrefix(name, "chrome"),
		strings.HasPrefix(name, "chromium"),
		strings.HasPrefix(name, "headless_shell"):
		return true
	}
	return false
}

func listProcesses() ([]procInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	infos := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		cmdline, _ := p.Cmdline()
		ppid, _ := p.Ppid()
		infos = append(infos, procInfo{PID: p.Pid, PPID: ppid, Name: name, Cmdline: cmdline})
	}
	return infos, nil
}

func spawnDetached(spec ProcessSpec) error {
	cmd := exec.Command(spec.Cmd, spec.Args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child ourselves so it never turns into a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

func killProcess(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
