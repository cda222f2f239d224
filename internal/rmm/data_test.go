package rmm

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const teamViewerYAML = `Meta:
  ID: RMML-0042
  Description: TeamViewer remote access
Executables:
  Windows:
    - C:\Program Files\TeamViewer\TeamViewer.exe
    - C:\Program Files\TeamViewer\TeamViewer_Service.exe
  Linux:
    - /opt/teamviewer/tv_bin/teamviewerd
NetConn:
  Domains:
    - teamviewer.com
    - '*.teamviewer.com'
  Ports:
    - 5938
    - 443
`

func writeSignature(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeSignature(t, dir, "TeamViewer.yaml", teamViewerYAML)
	writeSignature(t, dir, "notes.txt", "not a signature")

	sigs, err := LoadDir(dir, nil)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("got %d signatures, want 1", len(sigs))
	}

	sig := sigs[0]
	if sig.Name != "TeamViewer" {
		t.Errorf("Name = %q, want TeamViewer (filename stem)", sig.Name)
	}
	if sig.ID != "RMML-0042" {
		t.Errorf("ID = %q, want RMML-0042", sig.ID)
	}
	if len(sig.Domains) != 2 || sig.Domains[0] != "teamviewer.com" {
		t.Errorf("Domains = %v", sig.Domains)
	}
	if !reflect.DeepEqual(sig.Ports, []int{5938, 443}) {
		t.Errorf("Ports = %v, want [5938 443]", sig.Ports)
	}
	if len(sig.Executables["Windows"]) != 2 || len(sig.Executables["Linux"]) != 1 {
		t.Errorf("Executables = %v", sig.Executables)
	}
}

func TestLoadDir_SkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeSignature(t, dir, "Good.yaml", teamViewerYAML)
	writeSignature(t, dir, "Bad.yaml", "Meta: [unclosed")

	sigs, err := LoadDir(dir, nil)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Name != "Good" {
		t.Errorf("got %v, want only the Good signature", sigs)
	}
}

func TestLoadDir_Empty(t *testing.T) {
	if _, err := LoadDir(t.TempDir(), nil); err == nil {
		t.Fatal("LoadDir on an empty directory should fail")
	}
	if _, err := LoadDir(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("LoadDir on a missing directory should fail")
	}
}

func TestExecutablePaths_Order(t *testing.T) {
	sig := Signature{Executables: map[string][]string{
		"Windows": {"C:\\a.exe"},
		"Linux":   {"/usr/bin/a"},
		"MacOS":   {"/Applications/a"},
	}}
	got := sig.ExecutablePaths()
	want := []string{"/usr/bin/a", "/Applications/a", "C:\\a.exe"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExecutablePaths = %v, want %v (platform-sorted)", got, want)
	}
}

func TestByNameOrID(t *testing.T) {
	sigs := []Signature{
		{Name: "TeamViewer", ID: "RMML-0042"},
		{Name: "AnyDesk", ID: "RMML-0007"},
	}
	if sig, ok := ByNameOrID(sigs, "anydesk"); !ok || sig.ID != "RMML-0007" {
		t.Errorf("lookup by name failed: %v %v", sig, ok)
	}
	if sig, ok := ByNameOrID(sigs, "rmml-0042"); !ok || sig.Name != "TeamViewer" {
		t.Errorf("lookup by ID failed: %v %v", sig, ok)
	}
	if _, ok := ByNameOrID(sigs, "unknown"); ok {
		t.Error("lookup of an unknown signature should fail")
	}
}

func TestAllDomainsAndPorts(t *testing.T) {
	sigs := []Signature{
		{Domains: []string{"b.example", "a.example"}, Ports: []int{443, 5938}},
		{Domains: []string{"a.example"}, Ports: []int{5938, 7070}},
	}
	if got := AllDomains(sigs); !reflect.DeepEqual(got, []string{"a.example", "b.example"}) {
		t.Errorf("AllDomains = %v", got)
	}
	if got := AllPorts(sigs); !reflect.DeepEqual(got, []int{443, 5938, 7070}) {
		t.Errorf("AllPorts = %v", got)
	}
}

func TestCloneRepo_EmptyURL(t *testing.T) {
	if _, err := CloneRepo(context.Background(), "", t.TempDir(), nil); err == nil {
		t.Fatal("CloneRepo with an empty URL should fail")
	}
}
