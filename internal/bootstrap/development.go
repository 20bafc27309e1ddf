package bootstrap

import (
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/status"
)

// DevelopmentSupervisor reports an externally supervised backend as ready
// and manages no process.
type DevelopmentSupervisor struct {
	store *status.Store
}

func NewDevelopment() *DevelopmentSupervisor {
	return &DevelopmentSupervisor{store: status.NewStore(status.DevExternal())}
}

func (d *DevelopmentSupervisor) Bootstrap() status.Snapshot { return d.refresh(history.TriggerStartup) }
func (d *DevelopmentSupervisor) Retry() status.Snapshot     { return d.refresh(history.TriggerRetry) }
func (d *DevelopmentSupervisor) Status() status.Snapshot    { return d.store.Read() }
func (d *DevelopmentSupervisor) Shutdown()                  {}
func (d *DevelopmentSupervisor) PID() int                   { return 0 }

func (d *DevelopmentSupervisor) refresh(trigger history.Trigger) status.Snapshot {
	snap := status.DevExternal()
	_ = d.store.Write(snap)
	metrics.IncBootstrap(string(trigger), string(snap.Status), string(snap.LaunchMode))
	metrics.SetAvailable(true)
	return snap
}
