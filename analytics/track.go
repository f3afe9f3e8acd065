// Package analytics builds the tracker receiving upload session events.
package analytics

import (
	"fmt"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type TrackerFactory func(log.Logger, ...analytics.Properties) analytics.Tracker

const (
	AppIDEnvKey   = "UPLOADTHING_APP_ID"
	AppID         = "app_id"
	ClientPackage = "client_package"
	ClientVersion = "client_version"
)

func NewClientTracker(repository env.Repository, logger log.Logger, pkg, version string, trackerFactory TrackerFactory) (analytics.Tracker, error) {
	appID := repository.Get(AppIDEnvKey)
	if appID == "" {
		return nil, fmt.Errorf("no app ID found")
	}
	return trackerFactory(logger, analytics.Properties{
		AppID:         appID,
		ClientPackage: pkg,
		ClientVersion: version,
	}), nil
}

func NewDefaultClientTracker(repository env.Repository, logger log.Logger, pkg, version string) (analytics.Tracker, error) {
	return NewClientTracker(repository, logger, pkg, version, analytics.NewDefaultTracker)
}
