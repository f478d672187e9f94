package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jo-hoe/signtracker/internal/inspection"
	"github.com/jo-hoe/signtracker/internal/journal"
	"github.com/jo-hoe/signtracker/internal/remote"
	"github.com/jo-hoe/signtracker/internal/scanner"
	"github.com/jo-hoe/signtracker/internal/session"
)

// CoreService owns the workflow and the stores behind it. Calls that touch a
// session are serialized per session ID.
type CoreService struct {
	config         *ServiceConfig
	workflow       *inspection.Workflow
	sessionStore   session.Store
	journalService journal.JournalService

	locks sync.Map // session ID -> *sync.Mutex
}

func NewCoreService(config *ServiceConfig) *CoreService {
	journalService, err := getJournalService(config)
	if err != nil {
		slog.Error("failed to initialize journal service", "error", err)
		panic(err)
	}
	sessionStore, err := session.NewStore(config.Sessions.Type, config.Sessions.Address, config.SessionTTL())
	if err != nil {
		slog.Error("failed to initialize session store", "error", err)
		panic(err)
	}
	workflow, err := newWorkflow(config, journalService)
	if err != nil {
		slog.Error("failed to initialize workflow", "error", err)
		panic(err)
	}

	return &CoreService{
		config:         config,
		workflow:       workflow,
		sessionStore:   sessionStore,
		journalService: journalService,
	}
}

// Workflow exposes the workflow for callers that manage their own session,
// such as the terminal station.
func (service *CoreService) Workflow() *inspection.Workflow {
	return service.workflow
}

func (service *CoreService) Symbologies() []scanner.Symbology {
	return service.config.Station.Symbologies
}

// StartSession loads the lists for a new session and stores it.
func (service *CoreService) StartSession(ctx context.Context, token string) (*inspection.Session, error) {
	s, err := service.workflow.StartSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := service.sessionStore.Save(ctx, s); err != nil {
		return nil, err
	}
	slog.Info("session started", "session_id", s.ID, "reference_count", len(s.Reference), "log_count", len(s.Log))
	return s, nil
}

// EndSession waits for calls in flight on the session, then deletes it.
func (service *CoreService) EndSession(ctx context.Context, id string) error {
	mu := service.lock(id)
	mu.Lock()
	defer mu.Unlock()
	defer service.locks.Delete(id)

	if err := service.sessionStore.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("session ended", "session_id", id)
	return nil
}

func (service *CoreService) GetSession(ctx context.Context, id string) (*inspection.Session, error) {
	return service.sessionStore.Get(ctx, id)
}

func (service *CoreService) Scan(ctx context.Context, id, code string) (prompt *inspection.Prompt, err error) {
	err = service.withSession(ctx, id, func(s *inspection.Session) error {
		prompt, err = service.workflow.Scan(ctx, s, code)
		return err
	})
	return prompt, err
}

func (service *CoreService) Confirm(ctx context.Context, id, promptID, comment string) (entry inspection.LogEntry, err error) {
	err = service.withSession(ctx, id, func(s *inspection.Session) error {
		entry, err = service.workflow.Confirm(ctx, s, promptID, comment)
		return err
	})
	return entry, err
}

func (service *CoreService) Cancel(ctx context.Context, id, promptID string) error {
	return service.withSession(ctx, id, func(s *inspection.Session) error {
		return service.workflow.Cancel(ctx, s, promptID)
	})
}

// RecentActivity returns the newest journal entries.
func (service *CoreService) RecentActivity(ctx context.Context, limit int) ([]journal.Entry, error) {
	return service.journalService.Recent(ctx, limit)
}

// SignHistory returns every journaled scan of one sign, newest first.
func (service *CoreService) SignHistory(ctx context.Context, signNo string) ([]journal.Entry, error) {
	return service.journalService.BySign(ctx, signNo)
}

func (service *CoreService) Close() error {
	return errors.Join(service.sessionStore.Close(), service.journalService.Close())
}

// withSession runs fn under the session's lock and stores the session
// afterwards, also when fn failed: a failed write still leaves the local append
// and the closed prompt in place.
func (service *CoreService) withSession(ctx context.Context, id string, fn func(s *inspection.Session) error) error {
	mu := service.lock(id)
	mu.Lock()
	defer mu.Unlock()

	s, err := service.sessionStore.Get(ctx, id)
	if err != nil {
		return err
	}

	fnErr := fn(s)
	if err := service.sessionStore.Save(ctx, s); err != nil {
		return errors.Join(fnErr, fmt.Errorf("failed to save session %s: %w", id, err))
	}
	return fnErr
}

func (service *CoreService) lock(id string) *sync.Mutex {
	lock, _ := service.locks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func newWorkflow(config *ServiceConfig, journalService journal.JournalService) (*inspection.Workflow, error) {
	httpClient := &http.Client{Timeout: time.Duration(config.Sources.TimeoutSeconds) * time.Second}
	loader := remote.NewLoader(httpClient, config.Sources.ReferenceURL, config.Sources.LogURL, config.Sources.Delimiter)

	store, err := remote.NewGitHubStore(remote.GitHubConfig{
		BaseURL:           config.GitHub.BaseURL,
		Owner:             config.GitHub.Owner,
		Repo:              config.GitHub.Repo,
		Branch:            config.GitHub.Branch,
		Path:              config.GitHub.Path,
		RequestsPerSecond: config.GitHub.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize log store: %w", err)
	}

	writer := inspection.NewWriter(store, inspection.WriterConfig{
		Delimiter:       config.Sources.Delimiter,
		CommitMessage:   config.GitHub.CommitMessage,
		ConflictRetries: config.GitHub.ConflictRetries,
		Location:        config.Location(),
	})
	return inspection.NewWorkflow(loader, writer, journalService, inspection.DuplicatePolicy(config.Station.DuplicatePolicy)), nil
}

func getJournalService(config *ServiceConfig) (journal.JournalService, error) {
	journalService, err := journal.NewJournal(config.Journal.Type, config.Journal.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	slog.Info("journal initialized successfully", "type", config.Journal.Type)
	return journalService, nil
}
