package logger_test

import (
	"errors"
	"testing"

	"github.com/loopwire/reactor/logger"
	logfld "github.com/loopwire/reactor/logger/fields"
	loglvl "github.com/loopwire/reactor/logger/level"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLogger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logger Suite")
}

var _ = Describe("Logger", func() {
	It("is a safe no-op discard sink when nil", func() {
		var l *logger.Logger
		Expect(func() {
			l.Info("hello", nil)
			l.SetLevel(loglvl.DebugLevel)
		}).ToNot(Panic())
		Expect(l.GetLevel()).To(Equal(loglvl.NilLevel))
	})

	It("derives a child logger that keeps the parent's level", func() {
		l := logger.New()
		l.SetFields(logfld.New().Add("server", "echo"))
		child := l.With(logfld.New().Add("conn", "1"))
		Expect(child.GetLevel()).To(Equal(l.GetLevel()))
	})

	It("logs an error without panicking", func() {
		l := logger.New()
		Expect(func() { l.Error("boom", errors.New("disk full")) }).ToNot(Panic())
	})
})
