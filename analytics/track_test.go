package analytics

import (
	"testing"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientTrackerFailsIfAppIDIsNotFound(t *testing.T) {
	t.Setenv(AppIDEnvKey, "")

	_, err := NewDefaultClientTracker(env.NewRepository(), log.NewLogger(), "go-uploadthing", "1.0.0")

	assert.Error(t, err)
}

func TestNewClientTrackerAddsClientPropertiesToNewTracker(t *testing.T) {
	t.Setenv(AppIDEnvKey, "app-123")

	var got []analytics.Properties
	factory := func(_ log.Logger, properties ...analytics.Properties) analytics.Tracker {
		got = properties
		return nil
	}

	_, err := NewClientTracker(env.NewRepository(), log.NewLogger(), "go-uploadthing", "1.0.0", factory)

	require.NoError(t, err)
	assert.Equal(t, []analytics.Properties{{
		AppID:         "app-123",
		ClientPackage: "go-uploadthing",
		ClientVersion: "1.0.0",
	}}, got)
}
