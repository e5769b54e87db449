package command

import (
	"bytes"
	"context"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func runningAs(name string) func() (string, error) {
	return func() (string, error) { return name, nil }
}

func TestElevation(t *testing.T) {
	Convey("Given a command", t, func() {
		cmd := Command{Name: "pg_dump", Args: []string{"--format=custom", "orders"}, Env: []string{"PGPASSWORD=x"}}

		Convey("When no elevation is configured", func() {
			wrapped := NoElevation().Wrap(cmd)

			Convey("It should be unchanged", func() {
				So(wrapped.Name, ShouldEqual, "pg_dump")
				So(wrapped.Args, ShouldResemble, cmd.Args)
			})
		})

		Convey("When elevating to another account", func() {
			wrapped := AsUser("postgres", "PGPASSWORD").WithCurrentUser(runningAs("backup")).Wrap(cmd)

			Convey("It should prefix sudo with the target account", func() {
				So(wrapped.Name, ShouldEqual, "sudo")
				So(wrapped.Args, ShouldResemble, []string{
					"-n", "--preserve-env=PGPASSWORD", "-u", "postgres", "--",
					"pg_dump", "--format=custom", "orders",
				})
				So(wrapped.Env, ShouldResemble, cmd.Env)
			})
		})

		Convey("When already running as the target account", func() {
			wrapped := AsUser("postgres").WithCurrentUser(runningAs("postgres")).Wrap(cmd)

			Convey("It should be unchanged", func() {
				So(wrapped.Name, ShouldEqual, "pg_dump")
			})
		})

		Convey("When elevating a command that streams its output", func() {
			var sink bytes.Buffer
			streamed := cmd
			streamed.Stdout = &sink
			wrapped := AsUser("postgres").WithCurrentUser(runningAs("root")).Wrap(streamed)

			Convey("It should keep the output writer", func() {
				So(wrapped.Name, ShouldEqual, "sudo")
				So(wrapped.Stdout, ShouldEqual, &sink)
			})
		})

		Convey("When elevating to root", func() {
			wrapped := AsRoot().WithCurrentUser(runningAs("backup")).Wrap(Command{Name: "tar", Args: []string{"-czf", "out.tar.gz"}})

			Convey("It should not pass -u", func() {
				So(wrapped.Name, ShouldEqual, "sudo")
				So(wrapped.Args, ShouldResemble, []string{"-n", "--", "tar", "-czf", "out.tar.gz"})
			})
		})
	})
}

func TestExecRunner(t *testing.T) {
	Convey("Given an ExecRunner", t, func() {
		runner := NewExecRunner()
		ctx := context.Background()

		Convey("When the program succeeds", func() {
			out, err := runner.Run(ctx, Command{Name: "echo", Args: []string{"a b", "c"}})

			Convey("It should return stdout with arguments passed verbatim", func() {
				So(err, ShouldBeNil)
				So(strings.TrimSpace(string(out)), ShouldEqual, "a b c")
			})
		})

		Convey("When stdin is provided", func() {
			out, err := runner.Run(ctx, Command{Name: "cat", Stdin: strings.NewReader("hello")})

			Convey("It should be forwarded", func() {
				So(err, ShouldBeNil)
				So(string(out), ShouldEqual, "hello")
			})
		})

		Convey("When stdout is redirected to a writer", func() {
			var sink bytes.Buffer
			out, err := runner.Run(ctx, Command{Name: "echo", Args: []string{"dump"}, Stdout: &sink})

			Convey("It should stream into the writer and return nothing", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
				So(sink.String(), ShouldEqual, "dump\n")
			})
		})

		Convey("When the program exits non-zero", func() {
			_, err := runner.Run(ctx, Command{Name: "false"})

			Convey("It should return an error naming the tool", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldStartWith, "false failed:")
			})
		})

		Convey("When the program does not exist", func() {
			_, err := runner.Run(ctx, Command{Name: "definitely-not-a-real-tool"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestCommandString(t *testing.T) {
	Convey("String should render argv without env", t, func() {
		cmd := Command{Name: "rclone", Args: []string{"copyto", "a", "b"}, Env: []string{"SECRET=1"}}
		So(cmd.String(), ShouldEqual, "rclone copyto a b")
	})
}
