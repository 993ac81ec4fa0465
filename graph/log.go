package graph

import "github.com/sirupsen/logrus"

// The package logs through the standard logrus logger; the driver configures
// its level and output once at startup.
var log = logrus.StandardLogger()
