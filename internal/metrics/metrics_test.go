package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveGeneration(t *testing.T) {
	okBefore := testutil.ToFloat64(PlanGenerationTotal.WithLabelValues("daily", ResultSuccess))
	failBefore := testutil.ToFloat64(PlanGenerationTotal.WithLabelValues("daily", ResultFailure))

	ObserveGeneration("daily", time.Now(), nil)
	ObserveGeneration("daily", time.Now(), errors.New("planner down"))
	ObserveGeneration("daily", time.Now(), nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(PlanGenerationTotal.WithLabelValues("daily", ResultSuccess)))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(PlanGenerationTotal.WithLabelValues("daily", ResultFailure)))
}
