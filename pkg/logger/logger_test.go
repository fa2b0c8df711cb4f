package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)

		Convey("Then Get and Named return usable loggers", func() {
			So(Get(), ShouldNotBeNil)
			So(Named("recall"), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("Then level strings are parsed", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			So(SetLevelString("WARNING"), ShouldBeNil)
			So(SetLevelString(""), ShouldBeNil)
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

func TestLoggerWithWriter(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, slog.LevelInfo)
		ctx := context.Background()

		Convey("When a warning with fields is logged", func() {
			l.Named("fusion").Warn(ctx, "skill score degraded",
				String("item_id", "job-7"), Float64("deep", 0.8), Error(errors.New("timeout")))
			out := buf.String()

			Convey("Then the record carries message, fields and source", func() {
				So(out, ShouldContainSubstring, "level=WARN")
				So(out, ShouldContainSubstring, "skill score degraded")
				So(out, ShouldContainSubstring, "fusion.item_id=job-7")
				So(out, ShouldContainSubstring, "timeout")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When a debug record is below the level", func() {
			l.Debug(ctx, "hidden")
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("When fields are attached with With", func() {
			l.With(String("request_id", "r-1")).Info(ctx, "done", Int("results", 3))
			So(buf.String(), ShouldContainSubstring, "request_id=r-1")
			So(buf.String(), ShouldContainSubstring, "results=3")
		})
	})

	Convey("Nop discards everything", t, func() {
		So(func() { Nop().Error(context.Background(), "x") }, ShouldNotPanic)
	})
}
