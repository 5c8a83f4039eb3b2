package system

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/R3E-Network/loyalty_layer/pkg/logger"
)

type recordingService struct {
	name    string
	log     *[]string
	failOn  string
	stopErr error
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(context.Context) error {
	if r.failOn == "start" {
		return errors.New("boom")
	}
	*r.log = append(*r.log, "start:"+r.name)
	return nil
}

func (r recordingService) Stop(context.Context) error {
	*r.log = append(*r.log, "stop:"+r.name)
	return r.stopErr
}

func TestManagerOrdering(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{name: name, log: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(recordingService{name: "a", log: &events}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "late"}); err == nil {
		t.Fatalf("expected error registering after start")
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := "start:a,start:b,start:c,stop:c,stop:b,stop:a"
	if got := strings.Join(events, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(recordingService{name: "a", log: &events})
	_ = m.Register(recordingService{name: "b", log: &events, failOn: "start"})
	_ = m.Register(recordingService{name: "c", log: &events})

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	want := "start:a,stop:a"
	if got := strings.Join(events, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}
}

func TestCronServiceRunsJobs(t *testing.T) {
	svc := NewCronService("maintenance", logger.NewNop())

	var (
		once sync.Once
		ran  = make(chan struct{})
	)
	if err := svc.AddJob("@every 1s", "tick", func() { once.Do(func() { close(ran) }) }); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if err := svc.AddJob("not a schedule", "bad", func() {}); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	if svc.Jobs() != 1 {
		t.Fatalf("jobs = %d, want 1", svc.Jobs())
	}

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := svc.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
