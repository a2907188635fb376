package pm

import (
	"errors"
	"testing"

	"camsensor-go/errcode"
)

type counter struct {
	resumes, suspends int
	resumeErr         error
}

func (c *counter) gate() *Gate {
	return New(
		func() error { c.resumes++; return c.resumeErr },
		func() error { c.suspends++; return nil },
		nil)
}

func TestFirstGetResumesLastPutSuspends(t *testing.T) {
	var c counter
	g := c.gate()

	if g.GetIfInUse() {
		t.Fatalf("GetIfInUse on suspended gate")
	}
	if err := g.GetSync(); err != nil {
		t.Fatalf("GetSync: %v", err)
	}
	if err := g.GetSync(); err != nil {
		t.Fatalf("GetSync: %v", err)
	}
	if c.resumes != 1 || g.Count() != 2 || !g.Active() {
		t.Fatalf("resumes=%d count=%d active=%v", c.resumes, g.Count(), g.Active())
	}

	if !g.GetIfInUse() || g.Count() != 3 {
		t.Fatalf("GetIfInUse on active gate")
	}
	g.Put()
	g.Put()
	if c.suspends != 0 {
		t.Fatalf("suspended while referenced")
	}
	g.Put()
	if c.suspends != 1 || g.Active() || g.Count() != 0 {
		t.Fatalf("suspends=%d active=%v count=%d", c.suspends, g.Active(), g.Count())
	}
}

func TestResumeFailureDropsReference(t *testing.T) {
	boom := errors.New("rail stuck")
	c := counter{resumeErr: boom}
	g := c.gate()

	err := g.GetSync()
	if errcode.Of(err) != errcode.PMActivationFailed || !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if g.Count() != 0 || g.Active() {
		t.Fatalf("count=%d active=%v after failed resume", g.Count(), g.Active())
	}

	c.resumeErr = nil
	if err := g.GetSync(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.resumes != 2 {
		t.Fatalf("resumes=%d", c.resumes)
	}
}

func TestPutAtZeroIsNoop(t *testing.T) {
	var c counter
	g := c.gate()
	g.Put()
	if g.Count() != 0 || c.suspends != 0 {
		t.Fatalf("count=%d suspends=%d", g.Count(), c.suspends)
	}
}
