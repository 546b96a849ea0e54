package logger

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with json output", func() {
			err := Init(WithServiceName("medsafety-test"))
			So(err, ShouldBeNil)
			defer func() { _ = Sync() }()

			Convey("Then Get and Named return usable loggers", func() {
				So(Get(), ShouldNotBeNil)
				So(Named("test"), ShouldNotBeNil)
				So(func() { Get().Info(context.Background(), "test message", String("k", "v")) }, ShouldNotPanic)
			})
		})

		Convey("When initialized with console output", func() {
			So(Init(WithFormat("console")), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		defer SetLevel(zapcore.InfoLevel)

		So(SetLevelString("debug"), ShouldBeNil)
		So(level.Level(), ShouldEqual, zapcore.DebugLevel)
		So(SetLevelString(" WARNING "), ShouldBeNil)
		So(level.Level(), ShouldEqual, zapcore.WarnLevel)
		So(SetLevelString(""), ShouldBeNil)
		So(level.Level(), ShouldEqual, zapcore.InfoLevel)

		err := SetLevelString("verbose")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "unknown log level")
	})
}

func TestFieldsAreForwarded(t *testing.T) {
	Convey("Given a logger backed by an observer core", t, func() {
		core, logs := observer.New(zapcore.DebugLevel)
		l := New(zap.New(core)).Named("gateway")
		ctx := context.Background()

		Convey("When logging with structured fields", func() {
			l.Warn(ctx, "storage failed",
				String("backend", "redis"),
				Int("attempt", 1),
				Error(errors.New("connection refused")),
			)

			Convey("Then the entry carries every field", func() {
				So(logs.Len(), ShouldEqual, 1)
				entry := logs.All()[0]
				So(entry.Message, ShouldEqual, "storage failed")
				So(entry.LoggerName, ShouldEqual, "gateway")
				fields := entry.ContextMap()
				So(fields["backend"], ShouldEqual, "redis")
				So(fields["attempt"], ShouldEqual, int64(1))
				So(fields["error"], ShouldEqual, "connection refused")
			})
		})
	})

	Convey("Given a nop logger", t, func() {
		So(func() { Nop().Error(context.Background(), "ignored") }, ShouldNotPanic)
	})
}
