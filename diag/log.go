package diag

import (
	"github.com/sirupsen/logrus"
)

// Component returns the logger of one compiler phase.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
