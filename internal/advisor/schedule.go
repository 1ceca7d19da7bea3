package advisor

import (
	"context"

	"github.com/robfig/cron/v3"
)

// StartSchedule retrains on a standard five-field cron spec. Overlapping runs
// are skipped. The returned stop function waits for a running job to finish.
func (s *Service) StartSchedule(spec string) (stop func(), err error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = c.AddFunc(spec, func() {
		if _, err := s.Train(context.Background()); err != nil {
			s.logger.Warn("scheduled retrain failed, keeping previous model", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	s.logger.Info("retrain schedule started", "schedule", spec)

	return func() {
		<-c.Stop().Done()
	}, nil
}
