package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryRoles(t *testing.T) {
	Convey("Given a memory directory", t, func() {
		ctx := context.Background()
		d := NewMemory(WithRoles("r1", "r2"), WithMembers("alice", "bob"))

		Convey("When roles are added and removed", func() {
			So(d.AddRole(ctx, "alice", "r1"), ShouldBeNil)
			So(d.AddRole(ctx, "bob", "r1"), ShouldBeNil)
			So(d.AddRole(ctx, "bob", "r2"), ShouldBeNil)
			So(d.RemoveRole(ctx, "bob", "r1"), ShouldBeNil)

			Convey("Then holders reflect the changes", func() {
				holders, err := d.RoleHolders(ctx, "r1")
				So(err, ShouldBeNil)
				So(holders, ShouldResemble, []string{"alice"})
				So(d.RolesOf("bob"), ShouldResemble, []string{"r2"})
			})
		})

		Convey("When the role or member is unknown", func() {
			_, err := d.RoleHolders(ctx, "r9")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(errors.Is(d.AddRole(ctx, "carol", "r1"), ErrNotFound), ShouldBeTrue)
			So(errors.Is(d.AddRole(ctx, "alice", "r9"), ErrNotFound), ShouldBeTrue)
		})

		Convey("When a member leaves", func() {
			So(d.AddRole(ctx, "alice", "r1"), ShouldBeNil)
			d.Leave("alice")

			Convey("Then its roles disappear and mutations fail", func() {
				holders, err := d.RoleHolders(ctx, "r1")
				So(err, ShouldBeNil)
				So(holders, ShouldBeEmpty)
				So(errors.Is(d.RemoveRole(ctx, "alice", "r1"), ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryRestrictions(t *testing.T) {
	Convey("Given a directory with a protected member", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		d := NewMemory(
			WithMembers("alice", "admin", "bot"),
			WithProtected("admin"),
			WithServiceAccounts("bot"),
			WithMemoryClock(func() time.Time { return now }),
		)

		Convey("Then restricting a regular member succeeds", func() {
			So(d.ApplyTimedRestriction(ctx, "alice", 71*time.Second, "duel"), ShouldBeNil)
			until, ok := d.RestrictedUntil("alice")
			So(ok, ShouldBeTrue)
			So(until, ShouldEqual, now.Add(71*time.Second))
		})

		Convey("Then restricting a protected member is a permission error", func() {
			err := d.ApplyTimedRestriction(ctx, "admin", time.Minute, "duel")
			So(errors.Is(err, ErrPermission), ShouldBeTrue)
			_, ok := d.RestrictedUntil("admin")
			So(ok, ShouldBeFalse)
		})

		Convey("Then service accounts are reported", func() {
			isBot, err := d.IsServiceAccount(ctx, "bot")
			So(err, ShouldBeNil)
			So(isBot, ShouldBeTrue)
			isBot, _ = d.IsServiceAccount(ctx, "alice")
			So(isBot, ShouldBeFalse)
		})
	})
}

func TestThrottled(t *testing.T) {
	Convey("Given a throttled directory", t, func() {
		ctx := context.Background()
		mem := NewMemory(WithRoles("r1"), WithMembers("alice"), WithServiceAccounts("bot"))

		Convey("When throttling is disabled", func() {
			d := NewThrottled(mem, 0, 0)

			Convey("Then calls pass straight through", func() {
				So(d.AddRole(ctx, "alice", "r1"), ShouldBeNil)
				holders, err := d.RoleHolders(ctx, "r1")
				So(err, ShouldBeNil)
				So(holders, ShouldResemble, []string{"alice"})
				So(d.RemoveRole(ctx, "alice", "r1"), ShouldBeNil)
				isBot, _ := d.IsServiceAccount(ctx, "bot")
				So(isBot, ShouldBeTrue)
			})
		})

		Convey("When the bucket is empty and the context is cancelled", func() {
			d := NewThrottled(mem, 0.001, 1)
			So(d.AddRole(ctx, "alice", "r1"), ShouldBeNil)

			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then the call fails without reaching the directory", func() {
				So(d.RemoveRole(cctx, "alice", "r1"), ShouldNotBeNil)
				So(mem.RolesOf("alice"), ShouldResemble, []string{"r1"})
			})
		})
	})
}
