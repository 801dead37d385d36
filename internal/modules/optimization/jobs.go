package optimization

import (
	"github.com/rs/zerolog"
)

// RecomputeJob periodically refreshes the cached MVP weights for the stored
// universe. It satisfies the scheduler.Job interface.
type RecomputeJob struct {
	service *Service
	log     zerolog.Logger
}

// NewRecomputeJob creates a new recompute job.
func NewRecomputeJob(service *Service, log zerolog.Logger) *RecomputeJob {
	return &RecomputeJob{
		service: service,
		log:     log.With().Str("component", "recompute_job").Logger(),
	}
}

// Name returns the job name.
func (j *RecomputeJob) Name() string {
	return "mvp_recompute"
}

// Run recomputes the minimum-variance weights from stored history.
func (j *RecomputeJob) Run() error {
	result, err := j.service.RecomputeMVP()
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	j.log.Info().
		Int("assets", len(result.Weights)).
		Msg("Refreshed minimum-variance weights")
	return nil
}
