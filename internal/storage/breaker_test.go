package storage_test

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ancestrio/family-archive/internal"
	"github.com/ancestrio/family-archive/internal/storage"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

var _ = Describe("Breaker", func() {
	var (
		clock   *fakeClock
		breaker *storage.Breaker
	)

	BeforeEach(func() {
		clock = &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		breaker = storage.NewBreaker(15*time.Second, clock.Now)
	})

	It("allows attempts while closed", func() {
		Expect(breaker.Allow()).To(BeTrue())
	})

	It("fails fast during the cooldown window after tripping", func() {
		breaker.Trip()

		Expect(breaker.Allow()).To(BeFalse())

		clock.Advance(14 * time.Second)
		Expect(breaker.Allow()).To(BeFalse())
	})

	It("resumes live attempts once the cooldown elapses", func() {
		breaker.Trip()
		clock.Advance(15 * time.Second)

		Expect(breaker.Allow()).To(BeTrue())
	})

	It("re-opens when tripped again after recovery", func() {
		breaker.Trip()
		clock.Advance(16 * time.Second)
		Expect(breaker.Allow()).To(BeTrue())

		breaker.Trip()
		Expect(breaker.Allow()).To(BeFalse())
	})
})

var _ = Describe("Guard", func() {
	var (
		clock *fakeClock
		guard *storage.Guard
	)

	BeforeEach(func() {
		clock = &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		guard = storage.NewGuard(storage.NewBreaker(15*time.Second, clock.Now), logger)
	})

	It("passes ordinary errors through untouched", func() {
		plain := errors.New("record not found")

		Expect(guard.Normalize(plain)).To(Equal(plain))
		Expect(guard.Check()).To(Succeed())
	})

	It("normalizes connection-class SQLSTATE errors to a 503 contract", func() {
		pgErr := &pgconn.PgError{Code: "08006", Message: "server terminated abnormally"}

		err := guard.Normalize(pgErr)

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(503))
		Expect(appErr.Message).To(Equal("Database unavailable. Please try again later."))
	})

	It("normalizes dial failures and trips the breaker", func() {
		dialErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}

		err := guard.Normalize(dialErr)

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(503))

		// subsequent calls short-circuit without a live attempt
		checkErr := guard.Check()
		appErr, ok = internal.IsAppError(checkErr)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(503))
	})

	It("allows live attempts again after the cooldown window", func() {
		guard.Normalize(&pgconn.PgError{Code: "57P03"})
		Expect(guard.Check()).NotTo(Succeed())

		clock.Advance(15 * time.Second)
		Expect(guard.Check()).To(Succeed())
	})

	It("maps pool exhaustion to its own message", func() {
		err := guard.Normalize(&pgconn.PgError{Code: "53300", Message: "too many connections"})

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Message).To(Equal("Database connection pool exhausted. Please retry shortly."))
	})

	It("leaves domain SQLSTATE errors alone", func() {
		pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key"}

		Expect(guard.Normalize(pgErr)).To(Equal(pgErr))
	})
})
