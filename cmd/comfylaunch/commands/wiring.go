package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/slok/comfylaunch/internal/app/backend"
	"github.com/slok/comfylaunch/internal/app/diagnose"
	"github.com/slok/comfylaunch/internal/app/nodes"
	"github.com/slok/comfylaunch/internal/app/versions"
	"github.com/slok/comfylaunch/internal/capability"
	"github.com/slok/comfylaunch/internal/conventions"
	"github.com/slok/comfylaunch/internal/diagnosis"
	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
	"github.com/slok/comfylaunch/internal/pip"
	"github.com/slok/comfylaunch/internal/printer"
	"github.com/slok/comfylaunch/internal/process"
	"github.com/slok/comfylaunch/internal/process/readiness"
	"github.com/slok/comfylaunch/internal/settings"
	"github.com/slok/comfylaunch/internal/state"
	"github.com/slok/comfylaunch/internal/storage/sqlite"
	"github.com/slok/comfylaunch/internal/vcs"
	"github.com/slok/comfylaunch/internal/worker"
)

// services are the launcher use cases wired over the shared infrastructure.
type services struct {
	settings  *settings.Store
	git       *vcs.Runner
	versions  *versions.Service
	nodes     *nodes.Service
	diagnose  *diagnose.Service
	caps      *capability.Registry
	prober    *process.HTTPProber
	readiness readiness.Set
	logger    log.Logger
}

func (r *RootCommand) loadSettings() (*settings.Store, error) {
	store, err := settings.NewStore(settings.StoreConfig{
		Path:   conventions.SettingsPath(r.DataDir),
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create settings store: %w", err)
	}

	if err := store.Load(); err != nil {
		if !errors.Is(err, model.ErrNotValid) {
			return nil, err
		}
		r.Logger.Warningf("Using default settings: %v", err)
	}

	return store, nil
}

func (r *RootCommand) newServices(ctx context.Context) (*services, error) {
	store, err := r.loadSettings()
	if err != nil {
		return nil, err
	}

	git, err := vcs.NewRunner(vcs.RunnerConfig{Binary: r.GitBinary, Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create git runner: %w", err)
	}

	pipRunner, err := pip.NewRunner(pip.RunnerConfig{Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create pip runner: %w", err)
	}

	versionsSvc, err := versions.NewService(versions.ServiceConfig{Git: git, Pip: pipRunner, Settings: store, Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create versions service: %w", err)
	}

	nodesSvc, err := nodes.NewService(nodes.ServiceConfig{Git: git, Pip: pipRunner, Settings: store, Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create nodes service: %w", err)
	}

	client, err := diagnosis.NewClient(diagnosis.ClientConfig{Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create diagnosis client: %w", err)
	}

	diagnoseSvc, err := diagnose.NewService(diagnose.ServiceConfig{Diagnoser: client, Settings: store, Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create diagnose service: %w", err)
	}

	prober, err := process.NewHTTPProber(process.HTTPProberConfig{Logger: r.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create prober: %w", err)
	}

	markers, err := r.loadReadiness()
	if err != nil {
		return nil, err
	}

	svcs := &services{
		settings:  store,
		git:       git,
		versions:  versionsSvc,
		nodes:     nodesSvc,
		diagnose:  diagnoseSvc,
		prober:    prober,
		readiness: markers,
		logger:    r.Logger,
	}
	svcs.caps, err = svcs.capabilities()
	if err != nil {
		return nil, err
	}

	return svcs, nil
}

// loadReadiness uses the markers override file when present.
func (r *RootCommand) loadReadiness() (readiness.Set, error) {
	path := conventions.ReadinessPath(r.DataDir)
	if _, err := os.Stat(path); err != nil {
		return readiness.Default(), nil
	}

	set, err := readiness.LoadFile(path)
	if err != nil {
		return readiness.Set{}, fmt.Errorf("could not load readiness markers: %w", err)
	}
	r.Logger.Infof("Using readiness markers from %s", path)
	return set, nil
}

func (s *services) capabilities() (*capability.Registry, error) {
	reg := capability.NewRegistry()
	st := s.settings.Get()

	gitOK := s.git.Available() == nil
	if gitOK && st.InstallDir != "" {
		if _, err := os.Stat(filepath.Join(st.InstallDir, ".git")); err == nil {
			if err := reg.Register(capability.Versions, s.versions); err != nil {
				return nil, err
			}
		}
		if err := reg.Register(capability.Nodes, s.nodes); err != nil {
			return nil, err
		}
	}
	if st.DiagnosisAPIKey != "" {
		if err := reg.Register(capability.Diagnosis, s.diagnose); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// require returns an error when the capability is absent.
func (s *services) require(name string) error {
	if s.caps.Has(name) {
		return nil
	}
	switch name {
	case capability.Versions:
		return fmt.Errorf("version management needs git and an install dir that is a git repository: %w", model.ErrNotValid)
	case capability.Nodes:
		return fmt.Errorf("node management needs git and a configured install dir: %w", model.ErrNotValid)
	case capability.Diagnosis:
		return fmt.Errorf("diagnosis needs an API key, set it with `settings set diagnosis_api_key=...`: %w", model.ErrNotValid)
	}
	return fmt.Errorf("capability %q is not available: %w", name, model.ErrNotValid)
}

func (s *services) newSupervisor(st *state.State, d process.Dispatcher) (*process.Supervisor, *backend.Service, error) {
	spawner, err := process.NewExecSpawner(process.ExecSpawnerConfig{Logger: s.logger})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create spawner: %w", err)
	}

	markers := s.readiness
	sup, err := process.NewSupervisor(process.SupervisorConfig{
		State:      st,
		Spawner:    spawner,
		Prober:     s.prober,
		Settings:   s.settings,
		Markers:    &markers,
		Dispatcher: d,
		Env:        []string{"PYTHONUNBUFFERED=1"},
		Logger:     s.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create supervisor: %w", err)
	}

	backendSvc, err := backend.NewService(backend.ServiceConfig{
		Supervisor: sup,
		Settings:   s.settings,
		LookPath:   exec.LookPath,
		Logger:     s.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create backend service: %w", err)
	}

	return sup, backendSvc, nil
}

func (r *RootCommand) historyRepository(ctx context.Context) (*sqlite.Repository, error) {
	if err := os.MkdirAll(r.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data dir: %w", err)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: conventions.HistoryDBPath(r.DataDir),
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}
	return repo, nil
}

// runTask runs a single task on its own worker so it is recorded in the history like the
// ones queued from the terminal UI. A cancelled ctx requests a cooperative stop.
func (r *RootCommand) runTask(ctx context.Context, name string, fn worker.Func) (model.TaskRecord, error) {
	repo, err := r.historyRepository(ctx)
	if err != nil {
		return model.TaskRecord{}, err
	}
	defer repo.Close()

	finished := make(chan worker.TaskFinishedMsg, 1)
	w, err := worker.New(worker.Config{
		State:   state.New(),
		History: repo,
		Dispatcher: worker.DispatcherFunc(func(msg any) {
			if m, ok := msg.(worker.TaskFinishedMsg); ok {
				finished <- m
			}
		}),
		Logger: r.Logger,
	})
	if err != nil {
		return model.TaskRecord{}, fmt.Errorf("could not create worker: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	exited := make(chan error, 1)
	go func() { exited <- w.Run(runCtx) }()

	if _, err := w.Enqueue(worker.Task{Name: name, Run: fn}); err != nil {
		w.Shutdown()
		<-exited
		return model.TaskRecord{}, err
	}

	var res worker.TaskFinishedMsg
	select {
	case res = <-finished:
	case <-ctx.Done():
		r.Logger.Warningf("Cancelling %s", name)
		w.Cancel()
		res = <-finished
	}

	w.Shutdown()
	<-exited

	return res.Record, res.Err
}

func (r *RootCommand) printer(format string) printer.Printer {
	if format == "json" {
		return printer.NewJSONPrinter(r.Stdout)
	}
	return printer.NewTablePrinter(r.Stdout)
}

func (r *RootCommand) printTaskSummary(rec model.TaskRecord) {
	if rec.Summary != "" {
		fmt.Fprintln(r.Stdout, rec.Summary)
	}
}
