package endpoint

import (
	"context"
	"fmt"

	"github.com/asnowfix/homecontrol/internal/mynet"
	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/go-logr/logr"
)

type Publisher interface {
	PublishService(ctx context.Context, instance, service, domain string, port int, txt []string) (mynet.Publication, error)
}

// Announce publishes the device as "<kind>_<id>" in its role's service.
// The announcement lasts until ctx is done.
func Announce(ctx context.Context, p Publisher, role devices.Role, kind string, id devices.Id, port int, domain string) error {
	log := logr.FromContextOrDiscard(ctx)
	instance := devices.InstanceName(kind, id)
	txt := []string{
		fmt.Sprintf("id=%s", id),
		fmt.Sprintf("role=%s", role),
	}
	pub, err := p.PublishService(ctx, instance, role.Service(), domain, port, txt)
	if err != nil {
		log.Error(err, "Unable to announce", "instance", instance, "service", role.Service())
		return err
	}
	go func() {
		<-ctx.Done()
		log.Info("Withdrawing announce", "instance", instance)
		pub.Shutdown()
	}()
	return nil
}
