package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/events"
	"github.com/mrd/ca-drive/internal/logging"
	"github.com/mrd/ca-drive/internal/models"
	"github.com/mrd/ca-drive/internal/util/sanitize"
)

var (
	// ErrUploadAtRoot is returned when uploading with no folder selected.
	ErrUploadAtRoot = errors.New("select a folder before uploading")

	// ErrNoClient is returned when the explorer has no client selected.
	ErrNoClient = errors.New("no client selected")

	// ErrSuperseded is returned by Load when a newer fetch was issued while
	// this one was in flight. Its result was discarded.
	ErrSuperseded = errors.New("snapshot superseded by a newer request")

	// ErrEmptyName is returned when a folder name is blank after cleaning.
	ErrEmptyName = errors.New("folder name is empty")
)

// Provider is the drive backend the explorer reads from and mutates.
// *api.Client satisfies it.
type Provider interface {
	GetAllData(ctx context.Context, clientID string) (models.Snapshot, error)
	UploadFile(ctx context.Context, fileName, contentType string, content io.Reader, meta models.UploadMetadata) (*models.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	DeleteFolder(ctx context.Context, folderID string) error
	CreateFolder(ctx context.Context, req models.CreateFolderRequest) (*models.Folder, error)
}

// UploadJournal persists upload outcomes.
type UploadJournal interface {
	RecordUpload(ctx context.Context, rec models.UploadRecord) error
}

// UploadObserver follows the bytes of each accepted file. Start may wrap the reader.
type UploadObserver interface {
	Start(f LocalFile, r io.Reader) io.Reader
	Finish(f LocalFile, err error)
}

// Options configure an Explorer.
type Options struct {
	ClientID string
	Workers  int
	EventBus *events.EventBus
	Logger   *logging.Logger
	Journal  UploadJournal
	Observer UploadObserver
	Category string // upload category; defaults to GENERAL
}

// Explorer owns one client's snapshot and navigation state.
// All methods are safe for concurrent use; readers receive copies.
type Explorer struct {
	provider Provider
	bus      *events.EventBus
	logger   *logging.Logger
	journal  UploadJournal
	observer UploadObserver
	workers  int
	category string

	mu         sync.RWMutex
	clientID   string
	snapshot   models.Snapshot
	loaded     bool
	state      State
	activeYear string
	syncedYear string
	seq        uint64
}

// NewExplorer creates an explorer positioned at root with no snapshot.
func NewExplorer(provider Provider, opts Options) *Explorer {
	workers := opts.Workers
	if workers <= 0 {
		workers = constants.DefaultUploadWorkers
	}
	if workers > constants.MaxUploadWorkers {
		workers = constants.MaxUploadWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	category := opts.Category
	if category == "" {
		category = constants.DefaultUploadCategory
	}
	return &Explorer{
		category: category,
		provider: provider,
		bus:      opts.EventBus,
		logger:   logger,
		journal:  opts.Journal,
		observer: opts.Observer,
		workers:  workers,
		clientID: opts.ClientID,
		state:    NewState(),
	}
}

// View is a consistent copy of what the explorer shows.
type View struct {
	ClientID   string
	State      State
	Folders    []models.Folder
	Files      []models.File
	Loaded     bool
	ActiveYear string
}

// View returns the visible children of the current folder.
func (e *Explorer) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return View{
		ClientID:   e.clientID,
		State:      e.state.clone(),
		Folders:    VisibleFolders(e.snapshot, e.state.CurrentFolderID),
		Files:      VisibleFiles(e.snapshot, e.state.CurrentFolderID),
		Loaded:     e.loaded,
		ActiveYear: e.activeYear,
	}
}

// State returns the current navigation state.
func (e *Explorer) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.clone()
}

// Snapshot returns a copy of the last accepted snapshot.
func (e *Explorer) Snapshot() models.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return models.Snapshot{
		Folders: append([]models.Folder(nil), e.snapshot.Folders...),
		Files:   append([]models.File(nil), e.snapshot.Files...),
	}
}

// SetObserver replaces the observer used by later uploads.
func (e *Explorer) SetObserver(o UploadObserver) {
	e.mu.Lock()
	e.observer = o
	e.mu.Unlock()
}

// ClientID returns the client being browsed.
func (e *Explorer) ClientID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clientID
}

// SetClient switches to another client. Navigation returns to root, the
// snapshot is dropped, and the active year is applied again once the new
// client's first snapshot arrives. In-flight fetches are invalidated.
func (e *Explorer) SetClient(clientID string) {
	e.mu.Lock()
	if clientID == e.clientID {
		e.mu.Unlock()
		return
	}
	e.clientID = clientID
	e.snapshot = models.Snapshot{}
	e.loaded = false
	e.state = NewState()
	e.syncedYear = ""
	e.seq++
	nav := e.navEventLocked()
	e.mu.Unlock()

	e.bus.Publish(nav)
}

// Load fetches a fresh snapshot. Only the most recently issued fetch may
// update state; older responses return ErrSuperseded.
func (e *Explorer) Load(ctx context.Context) error {
	e.mu.Lock()
	e.seq++
	seq := e.seq
	clientID := e.clientID
	e.mu.Unlock()

	if clientID == "" {
		return ErrNoClient
	}

	snap, err := e.provider.GetAllData(ctx, clientID)

	e.mu.Lock()
	if seq != e.seq {
		latest := e.seq
		e.mu.Unlock()
		e.logger.Debug().
			Str("client_id", clientID).
			Uint64("sequence", seq).
			Uint64("latest", latest).
			Msg("Discarding stale snapshot response")
		return ErrSuperseded
	}

	if err != nil {
		e.mu.Unlock()
		e.logger.Warn().Err(err).Str("client_id", clientID).Msg("Failed to load drive")
		e.bus.Publish(&events.SnapshotEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventSnapshotFailed, Time: time.Now()},
			ClientID:  clientID,
			Sequence:  seq,
			Error:     err,
		})
		return fmt.Errorf("failed to load drive for client %s: %w", clientID, err)
	}

	before := e.state
	e.snapshot = snap
	e.loaded = true
	e.state = StateFor(snap, before.Current())
	e.applyYearLocked()
	changed := !sameState(before, e.state)
	nav := e.navEventLocked()
	e.mu.Unlock()

	e.logger.Debug().
		Str("client_id", clientID).
		Uint64("sequence", seq).
		Int("folders", len(snap.Folders)).
		Int("files", len(snap.Files)).
		Msg("Snapshot loaded")

	e.bus.Publish(&events.SnapshotEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventSnapshotLoaded, Time: time.Now()},
		ClientID:  clientID,
		Sequence:  seq,
		Folders:   len(snap.Folders),
		Files:     len(snap.Files),
	})
	if changed {
		e.bus.Publish(nav)
	}
	return nil
}

// SetActiveYear records the externally selected fiscal year and navigates to
// it. Repeating the same year is a no-op, so navigation below the year folder
// survives. Before the first non-empty snapshot the year is held and applied on
// load. Reports whether navigation happened.
func (e *Explorer) SetActiveYear(year string) bool {
	e.mu.Lock()
	e.activeYear = year
	if year == "" {
		e.syncedYear = ""
		e.mu.Unlock()
		return false
	}
	before := e.state
	if !e.applyYearLocked() {
		e.mu.Unlock()
		return false
	}
	changed := !sameState(before, e.state)
	nav := e.navEventLocked()
	e.mu.Unlock()

	if changed {
		e.bus.Publish(nav)
	}
	return true
}

// ActiveYear returns the last year passed to SetActiveYear.
func (e *Explorer) ActiveYear() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeYear
}

// applyYearLocked runs a pending year sync. Caller holds e.mu.
func (e *Explorer) applyYearLocked() bool {
	if e.activeYear == "" || e.activeYear == e.syncedYear {
		return false
	}
	if !e.loaded || e.snapshot.IsEmpty() {
		return false
	}
	next, err := Reduce(e.state, SyncToYear{Year: e.activeYear}, e.snapshot)
	if err != nil {
		return false
	}
	e.state = next
	e.syncedYear = e.activeYear
	return true
}

// Dispatch applies a navigation action against the current snapshot.
func (e *Explorer) Dispatch(a Action) (State, error) {
	e.mu.Lock()
	next, err := Reduce(e.state, a, e.snapshot)
	if err != nil {
		cur := e.state.clone()
		e.mu.Unlock()
		return cur, err
	}
	e.state = next
	nav := e.navEventLocked()
	e.mu.Unlock()

	e.bus.Publish(nav)
	return next.clone(), nil
}

// Enter descends into the visible folder with the given id.
func (e *Explorer) Enter(folderID string) (State, error) {
	e.mu.RLock()
	folder, ok := e.snapshot.FolderByID(folderID)
	e.mu.RUnlock()
	if !ok {
		return e.State(), fmt.Errorf("%w: %s", ErrNotVisible, folderID)
	}
	return e.Dispatch(EnterFolder{Folder: folder})
}

// GoUp moves to the parent folder.
func (e *Explorer) GoUp() (State, error) {
	return e.Dispatch(GoUp{})
}

// GoToBreadcrumb jumps to a breadcrumb.
func (e *Explorer) GoToBreadcrumb(i int) (State, error) {
	return e.Dispatch(GoToBreadcrumb{Index: i})
}

// UploadResult is the outcome of one file.
type UploadResult struct {
	File   LocalFile
	Status models.UploadStatus
	FileID string
	Err    error
}

// UploadReport summarizes a batch.
type UploadReport struct {
	BatchID    string
	ClientID   string
	FolderID   string
	FolderPath string
	Results    []UploadResult
	Refetched  bool
	RefetchErr error
}

// Count returns how many results have the given status.
func (r *UploadReport) Count(status models.UploadStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Err joins the errors of every rejected or failed file.
func (r *UploadReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.File.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Upload sends files into the current folder. Files of the wrong type or size
// are rejected without a request; the rest are uploaded in parallel and a
// failure of one does not stop the others. One refetch follows when anything
// was uploaded.
func (e *Explorer) Upload(ctx context.Context, files []LocalFile) (*UploadReport, error) {
	e.mu.RLock()
	clientID := e.clientID
	state := e.state.clone()
	obs := e.observer
	e.mu.RUnlock()

	if clientID == "" {
		return nil, ErrNoClient
	}
	if state.AtRoot() {
		return nil, ErrUploadAtRoot
	}

	report := &UploadReport{
		BatchID:    uuid.NewString(),
		ClientID:   clientID,
		FolderID:   state.Current(),
		FolderPath: state.String(),
		Results:    make([]UploadResult, len(files)),
	}
	meta := models.UploadMetadata{
		ClientID: clientID,
		FolderID: report.FolderID,
		Category: e.category,
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, f := range files {
		if err := f.Check(); err != nil {
			report.Results[i] = UploadResult{File: f, Status: models.UploadStatusRejected, Err: err}
			e.publishUpload(report, report.Results[i])
			continue
		}
		g.Go(func() error {
			res := e.uploadOne(ctx, f, meta, obs)
			report.Results[i] = res
			e.publishUpload(report, res)
			return nil
		})
	}
	_ = g.Wait()

	e.journalReport(ctx, report)

	uploaded := report.Count(models.UploadStatusUploaded)
	if uploaded > 0 {
		report.Refetched = true
		if err := e.Load(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			report.RefetchErr = err
		}
	}

	e.logger.Info().
		Str("batch_id", report.BatchID).
		Int("uploaded", uploaded).
		Int("rejected", report.Count(models.UploadStatusRejected)).
		Int("failed", report.Count(models.UploadStatusFailed)).
		Msgf("Upload to %s finished", report.FolderPath)

	e.bus.Publish(&events.UploadEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventUploadCompleted, Time: time.Now()},
		BatchID:   report.BatchID,
		ClientID:  clientID,
		FolderID:  report.FolderID,
		Uploaded:  uploaded,
		Rejected:  report.Count(models.UploadStatusRejected),
		Failed:    report.Count(models.UploadStatusFailed),
		Refetched: report.Refetched,
	})
	return report, nil
}

func (e *Explorer) uploadOne(ctx context.Context, f LocalFile, meta models.UploadMetadata, obs UploadObserver) UploadResult {
	res := UploadResult{File: f}

	rc, err := f.Open()
	if err != nil {
		res.Status = models.UploadStatusFailed
		res.Err = err
		if obs != nil {
			obs.Finish(f, err)
		}
		return res
	}
	defer rc.Close()

	var r io.Reader = rc
	if obs != nil {
		r = obs.Start(f, r)
	}

	uploaded, err := e.provider.UploadFile(ctx, f.Name, f.ContentType, r, meta)
	if obs != nil {
		obs.Finish(f, err)
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("file", f.Name).Msg("Upload failed")
		res.Status = models.UploadStatusFailed
		res.Err = err
		return res
	}

	res.Status = models.UploadStatusUploaded
	if uploaded != nil {
		res.FileID = uploaded.ID
	}
	return res
}

func (e *Explorer) publishUpload(report *UploadReport, res UploadResult) {
	e.bus.Publish(&events.UploadEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventUploadProgress, Time: time.Now()},
		BatchID:   report.BatchID,
		ClientID:  report.ClientID,
		FolderID:  report.FolderID,
		FileName:  res.File.Name,
		Size:      res.File.Size,
		Status:    string(res.Status),
		Error:     res.Err,
	})
}

func (e *Explorer) journalReport(ctx context.Context, report *UploadReport) {
	if e.journal == nil {
		return
	}
	for _, res := range report.Results {
		rec := models.UploadRecord{
			BatchID:     report.BatchID,
			ClientID:    report.ClientID,
			FolderID:    report.FolderID,
			FolderPath:  report.FolderPath,
			FileName:    res.File.Name,
			LocalPath:   res.File.Path,
			ContentType: res.File.ContentType,
			Size:        res.File.Size,
			Status:      res.Status,
			FileID:      res.FileID,
			CreatedAt:   time.Now().UTC(),
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := e.journal.RecordUpload(ctx, rec); err != nil {
			e.logger.Warn().Err(err).Str("file", res.File.Name).Msg("Failed to journal upload")
		}
	}
}

// Delete soft-deletes a file and refetches on success. On failure nothing is refetched.
func (e *Explorer) Delete(ctx context.Context, fileID string) error {
	return e.mutate(ctx, "delete_file", fileID, "", func() error {
		return e.provider.DeleteFile(ctx, fileID)
	})
}

// DeleteFolder soft-deletes a folder and refetches on success.
func (e *Explorer) DeleteFolder(ctx context.Context, folderID string) error {
	return e.mutate(ctx, "delete_folder", folderID, "", func() error {
		return e.provider.DeleteFolder(ctx, folderID)
	})
}

// CreateFolder creates a folder inside the current folder (a root folder at root)
// and refetches on success.
func (e *Explorer) CreateFolder(ctx context.Context, name string) (*models.Folder, error) {
	name = sanitize.Name(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	e.mu.RLock()
	req := models.CreateFolderRequest{
		Name:           name,
		ClientID:       e.clientID,
		ParentFolderID: copyID(e.state.CurrentFolderID),
	}
	e.mu.RUnlock()

	var created *models.Folder
	err := e.mutate(ctx, "create_folder", "", name, func() error {
		f, err := e.provider.CreateFolder(ctx, req)
		created = f
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Explorer) mutate(ctx context.Context, op, targetID, name string, call func() error) error {
	clientID := e.ClientID()
	if clientID == "" {
		return ErrNoClient
	}

	ev := &events.MutationEvent{
		BaseEvent: events.BaseEvent{Time: time.Now()},
		ClientID:  clientID,
		Op:        op,
		TargetID:  targetID,
		Name:      name,
	}

	if err := call(); err != nil {
		ev.EventType = events.EventMutationFailed
		ev.Error = err
		e.bus.Publish(ev)
		return fmt.Errorf("%s failed: %w", op, err)
	}

	ev.EventType = events.EventFileDeleted
	if op == "create_folder" {
		ev.EventType = events.EventFolderCreated
	}
	e.bus.Publish(ev)

	if err := e.Load(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		e.logger.Warn().Err(err).Str("op", op).Msg("Refresh after change failed")
	}
	return nil
}

func (e *Explorer) navEventLocked() *events.NavigationEvent {
	return &events.NavigationEvent{
		BaseEvent:       events.BaseEvent{EventType: events.EventNavigationChanged, Time: time.Now()},
		ClientID:        e.clientID,
		CurrentFolderID: copyID(e.state.CurrentFolderID),
		Path:            e.state.Path(),
	}
}

func sameState(a, b State) bool {
	if !sameID(a.CurrentFolderID, b.CurrentFolderID) || len(a.Breadcrumbs) != len(b.Breadcrumbs) {
		return false
	}
	for i := range a.Breadcrumbs {
		if !sameID(a.Breadcrumbs[i].ID, b.Breadcrumbs[i].ID) || a.Breadcrumbs[i].Name != b.Breadcrumbs[i].Name {
			return false
		}
	}
	return true
}
