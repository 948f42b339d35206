package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logsvc "github.com/theoremz/black/services/logger"
	"github.com/theoremz/black/testutil"
)

func Test_newScheduler(t *testing.T) {
	logger := logsvc.NewNopLogger()
	conf := testutil.NewConfig()
	stack := testutil.NewStack(conf, logger)

	t.Run("Disabled", func(t *testing.T) {
		c, err := newScheduler(conf, stack.ReadinessSvc, nil, logger)
		assert.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("Invalid spec", func(t *testing.T) {
		conf.Cron.DecaySchedule = "every day"
		_, err := newScheduler(conf, stack.ReadinessSvc, nil, logger)
		assert.Error(t, err)
	})

	t.Run("Daily", func(t *testing.T) {
		conf.Cron.DecaySchedule = "0 3 * * *"
		c, err := newScheduler(conf, stack.ReadinessSvc, nil, logger)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Len(t, c.Entries(), 1)
	})
}
