package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/phase"
)

func testEnv(t *testing.T) *Environment {
	t.Helper()
	info, _ := phase.Default().Info(phase.Development)
	return &Environment{
		ProjectDir:  t.TempDir(),
		ProjectName: "demo",
		Phase:       info,
	}
}

func TestVars_AllKeys(t *testing.T) {
	info, _ := phase.Default().Info(phase.CICD)
	env := &Environment{ProjectDir: "/proj", ProjectName: "demo", Phase: info}
	vars := env.Vars()
	if vars["PROJECT_DIR"] != "/proj" {
		t.Fatalf("PROJECT_DIR = %q", vars["PROJECT_DIR"])
	}
	if vars["PROJECT_NAME"] != "demo" {
		t.Fatalf("PROJECT_NAME = %q", vars["PROJECT_NAME"])
	}
	if vars["PHASE"] != "cicd" {
		t.Fatalf("PHASE = %q", vars["PHASE"])
	}
	if vars["SDLC_DIR"] != filepath.Join("/proj", ".sdlc") {
		t.Fatalf("SDLC_DIR = %q", vars["SDLC_DIR"])
	}
	if len(vars) != 4 {
		t.Fatalf("expected 4 keys, got %d", len(vars))
	}
}

func TestVars_BuiltinsWin(t *testing.T) {
	env := &Environment{
		ProjectDir: "/proj",
		CustomVars: map[string]string{"PROJECT_DIR": "/elsewhere", "CI_PLATFORM": "github"},
	}
	vars := env.Vars()
	if vars["PROJECT_DIR"] != "/proj" {
		t.Fatalf("PROJECT_DIR = %q", vars["PROJECT_DIR"])
	}
	if vars["CI_PLATFORM"] != "github" {
		t.Fatalf("CI_PLATFORM = %q", vars["CI_PLATFORM"])
	}
}

func TestBuildEnv_SdlcVars(t *testing.T) {
	t.Setenv("SDLC_STALE", "leaked")
	env := &Environment{ProjectDir: "/proj", ProjectName: "demo"}
	env.Set("TEST_COMMAND", "make test")
	result := BuildEnv(env)

	find := func(key string) (string, bool) {
		for _, e := range result {
			if strings.HasPrefix(e, key+"=") {
				return strings.TrimPrefix(e, key+"="), true
			}
		}
		return "", false
	}

	if v, _ := find("SDLC_PROJECT_DIR"); v != "/proj" {
		t.Fatalf("SDLC_PROJECT_DIR = %q", v)
	}
	if v, _ := find("SDLC_PROJECT_NAME"); v != "demo" {
		t.Fatalf("SDLC_PROJECT_NAME = %q", v)
	}
	if v, _ := find("SDLC_TEST_COMMAND"); v != "make test" {
		t.Fatalf("SDLC_TEST_COMMAND = %q", v)
	}
	if v, _ := find("SDLC_DIR"); v != filepath.Join("/proj", ".sdlc") {
		t.Fatalf("SDLC_DIR = %q", v)
	}
	if _, ok := find("SDLC_STALE"); ok {
		t.Fatal("inherited SDLC_ variable should be filtered")
	}
}

func TestClone_Independent(t *testing.T) {
	env := &Environment{ProjectDir: "/proj"}
	env.Set("A", "1")
	cp := env.Clone()
	cp.Set("A", "2")
	if env.CustomVars["A"] != "1" {
		t.Fatalf("original mutated: %q", env.CustomVars["A"])
	}
}

func TestDispatch_RejectsInteractive(t *testing.T) {
	env := testEnv(t)
	for _, typ := range []string{config.StepAsk, config.StepChoose, config.StepConfirm} {
		_, err := Dispatch(context.Background(), config.Step{Name: "x", Type: typ}, env)
		if err == nil {
			t.Fatalf("expected error for %s", typ)
		}
	}
}

func TestDispatch_File(t *testing.T) {
	env := testEnv(t)
	step := config.Step{Name: "readme", Type: config.StepFile, Path: "README.md", Content: "# $PROJECT_NAME\n"}
	var d DefaultDispatcher
	res, err := d.Dispatch(context.Background(), step, env)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Changed {
		t.Fatal("expected file to be created")
	}
	data, err := os.ReadFile(filepath.Join(env.ProjectDir, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# demo\n" {
		t.Fatalf("content = %q", data)
	}
}
