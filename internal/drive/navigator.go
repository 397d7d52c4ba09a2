// Package drive models navigation over a client's flat folder/file snapshot
// and the explorer that keeps that snapshot in sync with the backend.
package drive

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/models"
)

var (
	// ErrNotVisible is returned when entering a folder that is not a child of the current folder.
	ErrNotVisible = errors.New("folder is not visible at the current location")

	// ErrBreadcrumbOutOfRange is returned for a breadcrumb index outside the path.
	ErrBreadcrumbOutOfRange = errors.New("breadcrumb index out of range")

	// ErrAtRoot is returned by GoUp at the root.
	ErrAtRoot = errors.New("already at root")
)

// Breadcrumb is one segment of the path from root to the current folder.
// The root segment has a nil ID.
type Breadcrumb struct {
	ID   *string
	Name string
}

// State is an immutable navigation position. Values returned by Reduce never
// share breadcrumb storage with their input.
type State struct {
	CurrentFolderID *string
	Breadcrumbs     []Breadcrumb
}

// NewState returns the state positioned at root.
func NewState() State {
	return State{
		Breadcrumbs: []Breadcrumb{{ID: nil, Name: constants.RootBreadcrumbName}},
	}
}

// AtRoot reports whether the state points at the top of the tree.
func (s State) AtRoot() bool {
	return s.CurrentFolderID == nil
}

// Depth is the number of folders between root and the current location.
func (s State) Depth() int {
	return len(s.Breadcrumbs) - 1
}

// Current returns the id of the current folder, or "" at root.
func (s State) Current() string {
	if s.CurrentFolderID == nil {
		return ""
	}
	return *s.CurrentFolderID
}

// Path returns breadcrumb names, starting with Root.
func (s State) Path() []string {
	names := make([]string, len(s.Breadcrumbs))
	for i, b := range s.Breadcrumbs {
		names[i] = b.Name
	}
	return names
}

// Contains reports whether id appears anywhere in the breadcrumb path.
func (s State) Contains(id string) bool {
	for _, b := range s.Breadcrumbs {
		if b.ID != nil && *b.ID == id {
			return true
		}
	}
	return false
}

// String renders the path as "Root / FY - 2024-25 / April".
func (s State) String() string {
	parts := make([]string, len(s.Breadcrumbs))
	for i, b := range s.Breadcrumbs {
		if i == 0 {
			parts[i] = b.Name
			continue
		}
		parts[i] = DisplayName(b.Name)
	}
	return strings.Join(parts, " / ")
}

func (s State) clone() State {
	out := State{
		CurrentFolderID: copyID(s.CurrentFolderID),
		Breadcrumbs:     make([]Breadcrumb, len(s.Breadcrumbs)),
	}
	for i, b := range s.Breadcrumbs {
		out.Breadcrumbs[i] = Breadcrumb{ID: copyID(b.ID), Name: b.Name}
	}
	return out
}

// Action is a navigation request applied by Reduce.
type Action interface {
	isAction()
}

// EnterFolder descends into a child of the current folder.
type EnterFolder struct {
	Folder models.Folder
}

// GoToBreadcrumb jumps back to the breadcrumb at Index.
type GoToBreadcrumb struct {
	Index int
}

// GoUp moves to the parent of the current folder.
type GoUp struct{}

// SyncToYear resets navigation to the root folder named Year, or to root if there is none.
type SyncToYear struct {
	Year string
}

func (EnterFolder) isAction()    {}
func (GoToBreadcrumb) isAction() {}
func (GoUp) isAction()           {}
func (SyncToYear) isAction()     {}

// Reduce applies an action to a state. On a failed precondition the input
// state is returned unchanged together with the error.
func Reduce(s State, a Action, snap models.Snapshot) (State, error) {
	if len(s.Breadcrumbs) == 0 {
		s = NewState()
	}

	switch a := a.(type) {
	case EnterFolder:
		if a.Folder.ID == "" || !sameID(a.Folder.ParentFolderID, s.CurrentFolderID) {
			return s, fmt.Errorf("%w: %s", ErrNotVisible, a.Folder.Name)
		}
		if s.Contains(a.Folder.ID) {
			// A cycle in the backend data; entering would duplicate a breadcrumb.
			return s, fmt.Errorf("%w: %s is already on the path", ErrNotVisible, a.Folder.Name)
		}
		next := s.clone()
		id := a.Folder.ID
		next.CurrentFolderID = &id
		next.Breadcrumbs = append(next.Breadcrumbs, Breadcrumb{ID: copyID(&id), Name: a.Folder.Name})
		return next, nil

	case GoToBreadcrumb:
		if a.Index < 0 || a.Index >= len(s.Breadcrumbs) {
			return s, fmt.Errorf("%w: %d (path has %d)", ErrBreadcrumbOutOfRange, a.Index, len(s.Breadcrumbs))
		}
		next := s.clone()
		next.Breadcrumbs = next.Breadcrumbs[:a.Index+1]
		next.CurrentFolderID = copyID(next.Breadcrumbs[a.Index].ID)
		return next, nil

	case GoUp:
		if len(s.Breadcrumbs) <= 1 {
			return s, ErrAtRoot
		}
		return Reduce(s, GoToBreadcrumb{Index: len(s.Breadcrumbs) - 2}, snap)

	case SyncToYear:
		year, ok := FindYearFolder(snap, a.Year)
		if !ok {
			return NewState(), nil
		}
		next := NewState()
		id := year.ID
		next.CurrentFolderID = &id
		next.Breadcrumbs = append(next.Breadcrumbs, Breadcrumb{ID: copyID(&id), Name: year.Name})
		return next, nil
	}

	return s, fmt.Errorf("unknown navigation action %T", a)
}

// FindYearFolder returns the root folder whose name is exactly year.
func FindYearFolder(snap models.Snapshot, year string) (models.Folder, bool) {
	if year == "" {
		return models.Folder{}, false
	}
	for _, f := range snap.Folders {
		if f.ParentFolderID == nil && f.Name == year {
			return f, true
		}
	}
	return models.Folder{}, false
}

// RootYears lists root folder names in display order.
func RootYears(snap models.Snapshot) []string {
	roots := VisibleFolders(snap, nil)
	names := make([]string, len(roots))
	for i, f := range roots {
		names[i] = f.Name
	}
	return names
}

// VisibleFolders returns the children of folderID, sorted for display.
func VisibleFolders(snap models.Snapshot, folderID *string) []models.Folder {
	out := make([]models.Folder, 0)
	for _, f := range snap.Folders {
		if sameID(f.ParentFolderID, folderID) {
			out = append(out, f)
		}
	}
	SortFolders(out)
	return out
}

// VisibleFiles returns the files directly inside folderID, in provider order.
func VisibleFiles(snap models.Snapshot, folderID *string) []models.File {
	out := make([]models.File, 0)
	for _, f := range snap.Files {
		if sameID(f.FolderID, folderID) {
			out = append(out, f)
		}
	}
	return out
}

// SortFolders orders folders in place. Two fiscal-year names compare newest
// first; any other pair compares ascending with numeric-aware collation.
func SortFolders(folders []models.Folder) {
	c := collate.New(language.Und, collate.Loose, collate.Numeric)
	// The prefix test must agree with the collator, or a name like "fy-2024-5"
	// sorting between two FY names breaks the ordering.
	isFiscalYear := func(name string) bool {
		r := []rune(name)
		return len(r) >= 2 && c.CompareString(string(r[:2]), constants.FiscalYearPrefix) == 0
	}
	sort.SliceStable(folders, func(i, j int) bool {
		a, b := folders[i].Name, folders[j].Name
		if isFiscalYear(a) && isFiscalYear(b) {
			return c.CompareString(b, a) < 0
		}
		return c.CompareString(a, b) < 0
	})
}

var numericPrefix = regexp.MustCompile(`^\d+-`)

// DisplayName strips a leading "<digits>-" ordering prefix.
func DisplayName(name string) string {
	return numericPrefix.ReplaceAllString(name, "")
}

// PathTo returns the chain of folders from a root folder down to id.
// It stops at a missing parent or a cycle and reports false in that case.
func PathTo(snap models.Snapshot, id string) ([]models.Folder, bool) {
	var chain []models.Folder
	seen := make(map[string]bool)
	cur := id
	for {
		if seen[cur] {
			return nil, false
		}
		seen[cur] = true
		f, ok := snap.FolderByID(cur)
		if !ok {
			return nil, false
		}
		chain = append(chain, f)
		if f.ParentFolderID == nil {
			break
		}
		cur = *f.ParentFolderID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, true
}

// StateFor builds the navigation state pointing at folder id, or root when
// id is not reachable from a root folder.
func StateFor(snap models.Snapshot, id string) State {
	s := NewState()
	if id == "" {
		return s
	}
	chain, ok := PathTo(snap, id)
	if !ok {
		return s
	}
	for _, f := range chain {
		next, err := Reduce(s, EnterFolder{Folder: f}, snap)
		if err != nil {
			return NewState()
		}
		s = next
	}
	return s
}

// Resolve walks a slash separated path of folder names (display or raw)
// starting at root.
func Resolve(snap models.Snapshot, path string) (State, error) {
	s := NewState()
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var match *models.Folder
		for _, f := range VisibleFolders(snap, s.CurrentFolderID) {
			if f.Name == part || strings.EqualFold(DisplayName(f.Name), part) {
				f := f
				match = &f
				break
			}
		}
		if match == nil {
			return s, fmt.Errorf("%w: no folder %q under %s", ErrNotVisible, part, s)
		}
		next, err := Reduce(s, EnterFolder{Folder: *match}, snap)
		if err != nil {
			return s, err
		}
		s = next
	}
	return s, nil
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
