package drive

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/mrd/ca-drive/internal/models"
)

func strPtr(s string) *string { return &s }

func folder(id, name string, parent *string) models.Folder {
	return models.Folder{ID: id, Name: name, ParentFolderID: parent}
}

func file(id, name string, folderID *string) models.File {
	return models.File{ID: id, FileName: name, FolderID: folderID, FileType: "application/pdf"}
}

// sampleSnapshot is a small two-year tree with months below each year.
func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		Folders: []models.Folder{
			folder("fy24", "FY - 2024-25", nil),
			folder("fy25", "FY - 2025-26", nil),
			folder("apr24", "1-April", strPtr("fy24")),
			folder("may24", "2-May", strPtr("fy24")),
			folder("oct24", "7-October", strPtr("fy24")),
			folder("gst", "GST", strPtr("apr24")),
			folder("apr25", "1-April", strPtr("fy25")),
			folder("orphan", "Lost", strPtr("missing")),
		},
		Files: []models.File{
			file("f1", "invoice.pdf", strPtr("apr24")),
			file("f2", "ledger.xlsx", strPtr("apr24")),
			file("f3", "gstr1.pdf", strPtr("gst")),
			file("f4", "nowhere.pdf", strPtr("missing")),
		},
	}
}

func names(folders []models.Folder) []string {
	out := make([]string, len(folders))
	for i, f := range folders {
		out[i] = f.Name
	}
	return out
}

func checkInvariants(t *testing.T, s State) {
	t.Helper()
	if len(s.Breadcrumbs) == 0 {
		t.Fatal("breadcrumbs are empty")
	}
	root := s.Breadcrumbs[0]
	if root.ID != nil || root.Name != "Root" {
		t.Fatalf("breadcrumbs[0] = {%v, %q}, want {nil, Root}", root.ID, root.Name)
	}
	last := s.Breadcrumbs[len(s.Breadcrumbs)-1]
	if !sameID(last.ID, s.CurrentFolderID) {
		t.Fatalf("last breadcrumb %v != current %v", last.ID, s.CurrentFolderID)
	}
	seen := make(map[string]bool)
	for _, b := range s.Breadcrumbs[1:] {
		if b.ID == nil {
			t.Fatalf("non-root breadcrumb %q has nil id", b.Name)
		}
		if seen[*b.ID] {
			t.Fatalf("duplicate breadcrumb id %q", *b.ID)
		}
		seen[*b.ID] = true
	}
}

func TestNewState(t *testing.T) {
	s := NewState()
	checkInvariants(t, s)
	if !s.AtRoot() || s.Depth() != 0 {
		t.Errorf("NewState() = %+v, want root", s)
	}
}

func TestReduceBreadcrumbInvariantRandomWalk(t *testing.T) {
	snap := sampleSnapshot()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		s := NewState()
		for step := 0; step < 200; step++ {
			var a Action
			switch rng.Intn(3) {
			case 0:
				// Any folder, visible or not; invisible ones must be refused.
				a = EnterFolder{Folder: snap.Folders[rng.Intn(len(snap.Folders))]}
			case 1:
				a = GoToBreadcrumb{Index: rng.Intn(len(s.Breadcrumbs)+2) - 1}
			default:
				a = GoUp{}
			}

			next, err := Reduce(s, a, snap)
			if err != nil && !reflect.DeepEqual(next, s) {
				t.Fatalf("failed %T changed state: %+v -> %+v", a, s, next)
			}
			checkInvariants(t, next)
			s = next
		}
	}
}

func TestReduceEnterFolder(t *testing.T) {
	snap := sampleSnapshot()
	fy24, _ := snap.FolderByID("fy24")
	apr24, _ := snap.FolderByID("apr24")

	s, err := Reduce(NewState(), EnterFolder{Folder: fy24}, snap)
	if err != nil {
		t.Fatalf("enter fy24: %v", err)
	}
	if s.Current() != "fy24" || s.Depth() != 1 {
		t.Errorf("state = %+v", s)
	}

	// apr24 is a child of fy24, not of root.
	if _, err := Reduce(NewState(), EnterFolder{Folder: apr24}, snap); !errors.Is(err, ErrNotVisible) {
		t.Errorf("enter invisible folder: err = %v, want ErrNotVisible", err)
	}
}

func TestReduceDoesNotAliasInput(t *testing.T) {
	snap := sampleSnapshot()
	fy24, _ := snap.FolderByID("fy24")
	apr24, _ := snap.FolderByID("apr24")
	may24, _ := snap.FolderByID("may24")

	s1, _ := Reduce(NewState(), EnterFolder{Folder: fy24}, snap)
	s2, _ := Reduce(s1, EnterFolder{Folder: apr24}, snap)
	back, _ := Reduce(s2, GoUp{}, snap)
	s3, _ := Reduce(back, EnterFolder{Folder: may24}, snap)

	if got := s2.Path(); !reflect.DeepEqual(got, []string{"Root", "FY - 2024-25", "1-April"}) {
		t.Errorf("s2 path mutated: %v", got)
	}
	if got := s3.Path(); !reflect.DeepEqual(got, []string{"Root", "FY - 2024-25", "2-May"}) {
		t.Errorf("s3 path = %v", got)
	}
}

func TestReduceGoToBreadcrumb(t *testing.T) {
	snap := sampleSnapshot()
	s := StateFor(snap, "gst")
	if s.Depth() != 3 {
		t.Fatalf("StateFor(gst) depth = %d, want 3", s.Depth())
	}

	tests := []struct {
		name    string
		index   int
		want    string
		wantErr error
	}{
		{"root", 0, "", nil},
		{"year", 1, "fy24", nil},
		{"self", 3, "gst", nil},
		{"negative", -1, "gst", ErrBreadcrumbOutOfRange},
		{"past end", 4, "gst", ErrBreadcrumbOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reduce(s, GoToBreadcrumb{Index: tt.index}, snap)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got.Current() != tt.want {
				t.Errorf("current = %q, want %q", got.Current(), tt.want)
			}
			if err == nil && len(got.Breadcrumbs) != tt.index+1 {
				t.Errorf("len(breadcrumbs) = %d, want %d", len(got.Breadcrumbs), tt.index+1)
			}
		})
	}
}

func TestReduceGoUp(t *testing.T) {
	snap := sampleSnapshot()

	if _, err := Reduce(NewState(), GoUp{}, snap); !errors.Is(err, ErrAtRoot) {
		t.Errorf("GoUp at root: err = %v, want ErrAtRoot", err)
	}

	s, err := Reduce(StateFor(snap, "apr24"), GoUp{}, snap)
	if err != nil {
		t.Fatalf("GoUp: %v", err)
	}
	if s.Current() != "fy24" {
		t.Errorf("current = %q, want fy24", s.Current())
	}
}

func TestReduceSyncToYear(t *testing.T) {
	snap := sampleSnapshot()
	deep := StateFor(snap, "gst")

	s, err := Reduce(deep, SyncToYear{Year: "FY - 2025-26"}, snap)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := s.Path(); !reflect.DeepEqual(got, []string{"Root", "FY - 2025-26"}) {
		t.Errorf("path = %v", got)
	}

	s, err = Reduce(deep, SyncToYear{Year: "FY - 1999-00"}, snap)
	if err != nil {
		t.Fatalf("sync unknown year: %v", err)
	}
	if !s.AtRoot() || s.Depth() != 0 {
		t.Errorf("unknown year should reset to root, got %v", s.Path())
	}

	// Only root folders count as years.
	s, _ = Reduce(deep, SyncToYear{Year: "GST"}, snap)
	if !s.AtRoot() {
		t.Errorf("nested folder matched as year: %v", s.Path())
	}
}

func TestVisibility(t *testing.T) {
	snap := sampleSnapshot()
	locations := []*string{nil, strPtr("fy24"), strPtr("apr24"), strPtr("gst"), strPtr("missing"), strPtr("nope")}

	for _, loc := range locations {
		visible := make(map[string]bool)
		for _, f := range VisibleFolders(snap, loc) {
			visible[f.ID] = true
		}
		for _, f := range snap.Folders {
			if want := sameID(f.ParentFolderID, loc); visible[f.ID] != want {
				t.Errorf("folder %s at %v: visible = %v, want %v", f.ID, loc, visible[f.ID], want)
			}
		}

		visibleFiles := make(map[string]bool)
		for _, f := range VisibleFiles(snap, loc) {
			visibleFiles[f.ID] = true
		}
		for _, f := range snap.Files {
			if want := sameID(f.FolderID, loc); visibleFiles[f.ID] != want {
				t.Errorf("file %s at %v: visible = %v, want %v", f.ID, loc, visibleFiles[f.ID], want)
			}
		}
	}
}

func TestOrphansUnreachable(t *testing.T) {
	snap := sampleSnapshot()
	s := StateFor(snap, "orphan")
	if !s.AtRoot() {
		t.Errorf("orphan folder reachable: %v", s.Path())
	}
	for _, f := range VisibleFolders(snap, nil) {
		if f.ID == "orphan" {
			t.Error("orphan listed at root")
		}
	}
}

func TestVisibleFilesKeepProviderOrder(t *testing.T) {
	snap := models.Snapshot{Files: []models.File{
		file("3", "zeta.pdf", strPtr("a")),
		file("1", "alpha.pdf", strPtr("a")),
		file("2", "mid.pdf", strPtr("b")),
		file("4", "beta.pdf", strPtr("a")),
	}}
	got := VisibleFiles(snap, strPtr("a"))
	var ids []string
	for _, f := range got {
		ids = append(ids, f.ID)
	}
	if want := []string{"3", "1", "4"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestSortFolders(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "fiscal years descending",
			in:   []string{"FY-2023-24", "FY-2025-26", "FY-2024-25"},
			want: []string{"FY-2025-26", "FY-2024-25", "FY-2023-24"},
		},
		{
			name: "spaced fiscal years descending",
			in:   []string{"FY - 2022-23", "FY - 2024-25", "FY - 2023-24"},
			want: []string{"FY - 2024-25", "FY - 2023-24", "FY - 2022-23"},
		},
		{
			name: "months numeric ascending",
			in:   []string{"10-October", "2-February", "1-January"},
			want: []string{"1-January", "2-February", "10-October"},
		},
		{
			name: "case insensitive",
			in:   []string{"banks", "Audit", "Capital"},
			want: []string{"Audit", "banks", "Capital"},
		},
		{
			name: "full year of months",
			in:   []string{"12-March", "1-April", "11-February", "9-December", "10-January"},
			want: []string{"1-April", "9-December", "10-January", "11-February", "12-March"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			folders := make([]models.Folder, len(tt.in))
			for i, n := range tt.in {
				folders[i] = folder(n, n, nil)
			}
			SortFolders(folders)
			if got := names(folders); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SortFolders(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSortFoldersFiscalPrefixIgnoresCase(t *testing.T) {
	want := []string{"FY-2025", "fy-2024-5", "FY-2024"}
	perms := [][]string{
		{"fy-2024-5", "FY-2024", "FY-2025"},
		{"FY-2024", "fy-2024-5", "FY-2025"},
		{"FY-2025", "FY-2024", "fy-2024-5"},
		{"FY-2024", "FY-2025", "fy-2024-5"},
	}
	for _, in := range perms {
		folders := make([]models.Folder, len(in))
		for i, n := range in {
			folders[i] = folder(n, n, nil)
		}
		SortFolders(folders)
		if got := names(folders); !reflect.DeepEqual(got, want) {
			t.Errorf("SortFolders(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"3-March", "March"},
		{"10-October", "October"},
		{"FY-2024-25", "FY-2024-25"},
		{"FY - 2024-25", "FY - 2024-25"},
		{"GST", "GST"},
		{"2024-25", "25"},
		{"-dash", "-dash"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRootInvariantAfterHistory(t *testing.T) {
	snap := sampleSnapshot()
	s := NewState()
	steps := []Action{
		EnterFolder{Folder: snap.Folders[0]},
		EnterFolder{Folder: snap.Folders[2]},
		EnterFolder{Folder: snap.Folders[5]},
		GoToBreadcrumb{Index: 0},
		SyncToYear{Year: "FY - 2025-26"},
		GoUp{},
		GoUp{},
		SyncToYear{Year: "none"},
	}
	for _, a := range steps {
		s, _ = Reduce(s, a, snap)
		if b := s.Breadcrumbs[0]; b.ID != nil || b.Name != "Root" {
			t.Fatalf("after %T breadcrumbs[0] = %+v", a, b)
		}
	}
}

func TestEndToEndScenario(t *testing.T) {
	a := folder("A", "FY-2024-25", nil)
	b := folder("B", "1-April", strPtr("A"))
	snap := models.Snapshot{
		Folders: []models.Folder{a, b},
		Files:   []models.File{file("F1", "invoice.pdf", strPtr("B"))},
	}

	s, err := Reduce(NewState(), EnterFolder{Folder: a}, snap)
	if err != nil {
		t.Fatalf("enter A: %v", err)
	}
	s, err = Reduce(s, EnterFolder{Folder: b}, snap)
	if err != nil {
		t.Fatalf("enter B: %v", err)
	}

	if s.Current() != "B" {
		t.Errorf("current = %q, want B", s.Current())
	}
	want := []Breadcrumb{{nil, "Root"}, {strPtr("A"), "FY-2024-25"}, {strPtr("B"), "1-April"}}
	if !reflect.DeepEqual(s.Breadcrumbs, want) {
		t.Errorf("breadcrumbs = %+v, want %+v", s.Breadcrumbs, want)
	}
	var files []string
	for _, f := range VisibleFiles(snap, s.CurrentFolderID) {
		files = append(files, f.FileName)
	}
	if !reflect.DeepEqual(files, []string{"invoice.pdf"}) {
		t.Errorf("visible files = %v", files)
	}
	if got := s.String(); got != "Root / FY-2024-25 / April" {
		t.Errorf("String() = %q", got)
	}
}

func TestResolve(t *testing.T) {
	snap := sampleSnapshot()

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"/", "", false},
		{"FY - 2024-25", "fy24", false},
		{"FY - 2024-25/April", "apr24", false},
		{"FY - 2024-25/1-April/GST", "gst", false},
		{"FY - 2025-26/april", "apr25", false},
		{"FY - 2024-25/June", "fy24", true},
		{"Lost", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			s, err := Resolve(snap, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) err = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if s.Current() != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, s.Current(), tt.want)
			}
			checkInvariants(t, s)
		})
	}
}

func TestRootYears(t *testing.T) {
	got := RootYears(sampleSnapshot())
	want := []string{"FY - 2025-26", "FY - 2024-25"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RootYears = %v, want %v", got, want)
	}
}
