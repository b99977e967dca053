package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/somo/apps/api/echo"
	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	sqlxrepos "github.com/trezcool/somo/storage/database/sqlx"
	"github.com/trezcool/somo/tests"
)

var courseStore course.Store

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	db := testutil.OpenDB(t)
	courseStore = sqlxrepos.NewCourseStore(db)
	validate, translator := testutil.NewValidator()

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		conf:       &core.Config{AppName: "Somo", SecretKey: "test-secret"},
		db:         db.DB,
		dialect:    "sqlite3",
		migrateLog: goose.NopLogger(),
		courseSvc:  course.NewService(courseStore, nil, new(testutil.Logger), validate, translator),
		out:        &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "loadmodule: no file", args: []string{"loadmodule"}, wantErr: errHelp},
		{name: "progress: no module", args: []string{"progress", "-learner", "l1"}, wantErr: errHelp},
		{name: "devtoken: no learner", args: []string{"devtoken"}, wantErr: errHelp},
		{name: "devtoken: bad role", args: []string{"devtoken", "-learner", "l1", "-role", "king"}, wantErrStr: `invalid role "king"`},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })

	gooseRunFunc = func(_ context.Context, _ *sql.DB, _ string, _ goose.Logger, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	})

	t.Run("no SQL database", func(t *testing.T) {
		noDB := *cli
		noDB.db = nil
		assert.EqualError(t, noDB.run([]string{"admin", "migrate", "up"}), "migrations need a SQL database backend")
	})
}

func Test_commandLine_migrateRunsGoose(t *testing.T) {
	cli, _ := setup(t)

	// the test DB is already migrated: every migration is applied
	require.NoError(t, cli.run([]string{"admin", "migrate", "version"}))
	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
}

func writeModule(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_commandLine_loadModule(t *testing.T) {
	cli, out := setup(t)

	valid := writeModule(t, `
id: intro-go
name: Intro to Go
steps:
  - id: install
    title: Install Go
  - id: hello
    title: Hello, World
    description: Your first program.
  - id: modules
    title: Modules
`)
	reordered := writeModule(t, `
id: intro-go
name: Intro to Go
steps:
  - id: hello
    title: Hello, World
  - id: install
    title: Install Go
  - id: modules
    title: Modules
`)
	invalid := writeModule(t, `
id: intro go
name: Intro to Go
steps: []
`)

	runCLITests(t, cli, []cliTest{
		{name: "missing file", args: []string{"loadmodule", "-file", filepath.Join(t.TempDir(), "nope.yaml")}, wantErrStr: "no such file"},
		{name: "malformed file", args: []string{"loadmodule", "-file", writeModule(t, "id: [")}, wantErrStr: "parsing"},
		{name: "invalid module", args: []string{"loadmodule", "-file", invalid}, wantErrStr: "only alphanumeric characters"},
		{name: "create", args: []string{"loadmodule", "-file", valid}},
		{name: "reorder without progress", args: []string{"loadmodule", "-file", reordered}},
	})
	assert.Contains(t, out.String(), "module intro-go saved with 3 steps")

	mod, err := courseStore.GetModule(context.Background(), "intro-go")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "install", "modules"}, mod.StepIDs())

	// once a learner progressed, the order is fixed
	_, err = cli.courseSvc.MarkComplete(context.Background(), core.Learner{ID: "l1"}, "intro-go", "hello")
	require.NoError(t, err)

	err = cli.run([]string{"admin", "loadmodule", "-file", valid})
	assert.True(t, core.IsStateError(err), "got %v", err)
}

func Test_commandLine_progress(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateModule(t, courseStore, "m1", "Module 1", "A", "B", "C")

	_, err := cli.courseSvc.MarkComplete(context.Background(), core.Learner{ID: "l1"}, "m1", "A")
	require.NoError(t, err)
	_, err = cli.courseSvc.MarkComplete(context.Background(), core.Learner{ID: "l1"}, "m1", "C")
	require.NoError(t, err)

	require.NoError(t, cli.run([]string{"admin", "progress", "-learner", "l1", "-module", "m1"}))
	want := strings.Join([]string{
		"Module 1 (m1)",
		"  [x] 1. Step A",
		"  [ ] 2. Step B <- current",
		"  [x] 3. Step C",
		"current step: 1/3, finished: false",
		"",
	}, "\n")
	assert.Equal(t, want, out.String())

	err = cli.run([]string{"admin", "progress", "-learner", "l1", "-module", "nope"})
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func Test_commandLine_devToken(t *testing.T) {
	cli, out := setup(t)

	require.NoError(t, cli.run([]string{
		"admin", "devtoken", "-learner", "t1", "-name", "Teacher", "-email", "t1@test.cd", "-role", core.RoleTeacher, "-ttl", "1h",
	}))

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)

	lrn := claims.Learner()
	assert.Equal(t, "t1", lrn.ID)
	assert.Equal(t, "t1@test.cd", lrn.Email)
	assert.True(t, lrn.IsAuthor())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}
