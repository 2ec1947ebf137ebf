package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/podium/internal/adapters/repository/sqlite"
	"github.com/okian/podium/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func seed(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	rows := []model.Contribution{
		{ID: "c1", SubjectID: "alice", Amount: 10, CreatedAt: now.Add(-time.Hour)},
		{ID: "c2", SubjectID: "alice", Amount: 2.5, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "c3", SubjectID: "bob", Amount: 7, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "old", SubjectID: "bob", Amount: 99, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}
	for _, c := range rows {
		c.ScopeID = "default"
		if _, err := store.AddContribution(ctx, c); err != nil {
			t.Fatalf("add %s: %v", c.ID, err)
		}
	}
	if _, err := store.RemoveContribution(ctx, "c2", ""); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.RecordDuel(ctx, model.DuelEvent{
		VictimID: "bob", ScopeID: "default", ActorID: "alice", Duration: time.Minute, CreatedAt: now,
	}); err != nil {
		t.Fatalf("record duel: %v", err)
	}
}

func run(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	Convey("Given a seeded sqlite database", t, func() {
		path := filepath.Join(t.TempDir(), "podium.db")
		seed(t, path)
		db := []string{"--driver", "sqlite", "--db", path}

		Convey("When stats is run", func() {
			out, err := run(append(db, "stats")...)

			Convey("Then counts are printed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "sqlite "+path)
				So(out, ShouldContainSubstring, "Removed contributions:")
				So(out, ShouldContainSubstring, "17.00")
				So(out, ShouldContainSubstring, "Duel events:")
			})
		})

		Convey("When list is run without a subject", func() {
			out, err := run(append(db, "list")...)

			Convey("Then only active contributions in the window are shown", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "c1")
				So(out, ShouldContainSubstring, "c3")
				So(out, ShouldNotContainSubstring, "old")
				So(out, ShouldContainSubstring, "2 contribution(s) found.")
			})
		})

		Convey("When list is run for a subject", func() {
			out, err := run(append(db, "list", "alice")...)

			Convey("Then removed contributions are included", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "c2")
				So(out, ShouldContainSubstring, "yes")
				So(out, ShouldContainSubstring, "2 contribution(s) found.")
			})
		})

		Convey("When purge-expired is run", func() {
			out, err := run(append(db, "purge-expired")...)
			again, _ := run(append(db, "purge-expired")...)

			Convey("Then only contributions outside the window are deleted", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Permanently deleted 1 expired contribution(s).")
				So(again, ShouldContainSubstring, "Permanently deleted 0 expired contribution(s).")
			})
		})

		Convey("When clear-subject is run", func() {
			out, err := run(append(db, "clear-subject", "alice")...)
			listed, _ := run(append(db, "list")...)

			Convey("Then the subject's active contributions are removed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Removed 1 contribution(s) for subject alice.")
				So(listed, ShouldNotContainSubstring, "alice")
			})
		})

		Convey("When clear-subject is run without an id", func() {
			_, err := run(append(db, "clear-subject")...)
			So(err, ShouldNotBeNil)
		})

		Convey("When reset is run", func() {
			_ = os.WriteFile(path+"-wal", []byte{}, 0o600)
			out, err := run(append(db, "reset")...)

			Convey("Then the database and its sidecar files are gone", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Database deleted.")
				_, statErr := os.Stat(path)
				So(errors.Is(statErr, os.ErrNotExist), ShouldBeTrue)
				_, statErr = os.Stat(path + "-wal")
				So(errors.Is(statErr, os.ErrNotExist), ShouldBeTrue)
			})

			Convey("Then store commands report the missing database", func() {
				_, err := run(append(db, "stats")...)
				So(errors.Is(err, ErrNoDatabase), ShouldBeTrue)

				out, err := run(append(db, "reset")...)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Nothing to reset.")
			})
		})
	})
}

func TestMemoryDriver(t *testing.T) {
	Convey("Given the memory driver", t, func() {
		out, err := run("--driver", "memory", "list")
		reset, resetErr := run("--driver", "memory", "reset")

		Convey("Then commands run against an empty store", func() {
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "No contributions found.")
			So(resetErr, ShouldBeNil)
			So(reset, ShouldContainSubstring, "nothing to reset")
		})
	})

	Convey("Given an unknown driver", t, func() {
		_, err := run("--driver", "cassandra", "stats")
		So(err, ShouldNotBeNil)
	})
}
