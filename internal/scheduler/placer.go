package scheduler

import (
	"github.com/sirupsen/logrus"

	"github.com/armadaproject/jobclass/internal/common/logctx"
	"github.com/armadaproject/jobclass/internal/scheduler/equivclass"
)

// Placer consumes the classes of a cycle, evaluating each class once and applying the outcome to all its members.
// The result must not be retained after Place returns.
type Placer interface {
	Place(ctx *logctx.Context, result *equivclass.Result) error
}

// LoggingPlacer places nothing; it logs each class with its representative job.
type LoggingPlacer struct{}

func (LoggingPlacer) Place(ctx *logctx.Context, result *equivclass.Result) error {
	for i, class := range result.Classes() {
		ctx.Log.WithFields(logrus.Fields{
			"class":          i,
			"size":           class.Size(),
			"representative": class.Representative(),
		}).Infof("Class %s", class.Key)
	}
	return nil
}
